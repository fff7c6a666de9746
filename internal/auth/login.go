package auth

import "github.com/harrylevesque/pinauth/internal/models"

// ValidateLogin only rejects the empty PIN. PINs registered under an older,
// shorter policy must still be checkable.
func (m *PinCodeManager) ValidateLogin(pin models.PinCode) error {
	if pin.IsEmpty() {
		return ErrPinCodeIsEmpty
	}
	return nil
}
