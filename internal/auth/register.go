package auth

import (
	"fmt"

	"github.com/harrylevesque/pinauth/internal/models"
)

// ValidateRegistration checks a new PIN against policy: non-empty and at
// least pinCodeSize characters. There is no upper bound and no character set.
func (m *PinCodeManager) ValidateRegistration(pin models.PinCode) error {
	if pin.IsEmpty() {
		return ErrPinCodeIsEmpty
	}
	if n := pin.Len(); n < m.pinCodeSize {
		return fmt.Errorf("%w: %d characters, minimum is %d", ErrPinCodeTooShort, n, m.pinCodeSize)
	}
	return nil
}
