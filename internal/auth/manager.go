package auth

import (
	"context"
	"crypto/ecdh"
	"crypto/subtle"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/harrylevesque/pinauth/internal/crypto"
	"github.com/harrylevesque/pinauth/internal/models"
	"github.com/harrylevesque/pinauth/internal/pepper"
)

// DefaultPinCodeSize is the registration minimum used when none is configured.
const DefaultPinCodeSize = 6

// PinCodeManager validates PINs and encrypts them with pepper-derived keys.
// It holds only immutable configuration and the injected collaborators, so it
// is safe for concurrent use as long as those collaborators are.
type PinCodeManager struct {
	pinCodeSize int
	encrypter   crypto.Encrypter
	pepper      pepper.Repository
}

// NewPinCodeManager returns a manager enforcing pinCodeSize at registration.
// A non-positive pinCodeSize selects DefaultPinCodeSize.
func NewPinCodeManager(pinCodeSize int, encrypter crypto.Encrypter, repo pepper.Repository) *PinCodeManager {
	if pinCodeSize <= 0 {
		pinCodeSize = DefaultPinCodeSize
	}
	return &PinCodeManager{
		pinCodeSize: pinCodeSize,
		encrypter:   encrypter,
		pepper:      repo,
	}
}

// PinCodeSize returns the configured registration minimum.
func (m *PinCodeManager) PinCodeSize() int { return m.pinCodeSize }

// Encrypt encrypts pin with the current pepper. Errors from the pepper
// repository and the encrypter are returned unchanged.
func (m *PinCodeManager) Encrypt(ctx context.Context, pin models.PinCode) (models.EncryptedPinCode, error) {
	ct, _, err := m.encryptWith(ctx, m.encrypter, pin)
	return ct, err
}

// Decrypt recovers the PIN from an encrypted value. Every failure satisfies
// errors.Is(err, ErrPinCodeDecrypt) and still unwraps to its cause.
func (m *PinCodeManager) Decrypt(ctx context.Context, encrypted models.EncryptedPinCode) (models.PinCode, error) {
	data, _, err := m.decryptWith(ctx, m.encrypter, encrypted)
	if err != nil {
		return "", err
	}
	defer models.Zero(data)

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %w", ErrPinCodeDecrypt, ErrInvalidEncoding)
	}
	return models.PinCode(data), nil
}

// Verify reports whether pin matches encrypted, comparing in constant time.
// It returns nil on match, ErrPinCodeMismatch on difference, or a decrypt error.
func (m *PinCodeManager) Verify(ctx context.Context, pin models.PinCode, encrypted models.EncryptedPinCode) error {
	_, err := m.verifyWith(ctx, m.encrypter, pin, encrypted)
	return err
}

// encryptWith encrypts pin under enc and returns the id of the pepper key used.
func (m *PinCodeManager) encryptWith(ctx context.Context, enc crypto.Encrypter, pin models.PinCode) (models.EncryptedPinCode, string, error) {
	data, err := pin.Bytes()
	if err != nil {
		return nil, "", err
	}
	defer models.Zero(data)

	key, iv, err := m.material(ctx)
	if err != nil {
		return nil, "", err
	}
	ct, err := enc.EncryptWithDerivedKey(key, data, iv)
	if err != nil {
		return nil, "", err
	}
	return ct, crypto.KeyID(key), nil
}

// verifyWith is Verify with an explicit encrypter. The returned key id is set
// whenever the pepper could be loaded, also on mismatch or decrypt failure.
func (m *PinCodeManager) verifyWith(ctx context.Context, enc crypto.Encrypter, pin models.PinCode, encrypted models.EncryptedPinCode) (string, error) {
	want, keyID, err := m.decryptWith(ctx, enc, encrypted)
	if err != nil {
		return keyID, err
	}
	defer models.Zero(want)

	got, err := pin.Bytes()
	if err != nil {
		return keyID, err
	}
	defer models.Zero(got)

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return keyID, ErrPinCodeMismatch
	}
	return keyID, nil
}

func (m *PinCodeManager) decryptWith(ctx context.Context, enc crypto.Encrypter, encrypted models.EncryptedPinCode) ([]byte, string, error) {
	if len(encrypted) == 0 {
		return nil, "", fmt.Errorf("%w: empty ciphertext", ErrPinCodeDecrypt)
	}
	key, iv, err := m.material(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrPinCodeDecrypt, err)
	}
	keyID := crypto.KeyID(key)
	data, err := enc.DecryptWithDerivedKey(key, encrypted, iv)
	if err != nil {
		return nil, keyID, fmt.Errorf("%w: %w", ErrPinCodeDecrypt, err)
	}
	return data, keyID, nil
}

// material returns the pepper key and initial vector, from a single read when
// the repository supports it so both come from the same generation.
func (m *PinCodeManager) material(ctx context.Context) (*ecdh.PrivateKey, []byte, error) {
	if mr, ok := m.pepper.(pepper.MaterialRepository); ok {
		mat, err := mr.Material(ctx)
		if err != nil {
			return nil, nil, err
		}
		return mat.Key, mat.InitialVector, nil
	}
	key, err := m.pepper.PepperKey(ctx)
	if err != nil {
		return nil, nil, err
	}
	iv, err := m.pepper.PepperInitialVector(ctx)
	if err != nil {
		return nil, nil, err
	}
	return key, iv, nil
}

// algorithm returns the AEAD of the manager's encrypter, or "" when the
// encrypter does not say.
func (m *PinCodeManager) algorithm() string {
	if a, ok := m.encrypter.(interface{ Algorithm() crypto.Algorithm }); ok {
		return string(a.Algorithm())
	}
	return ""
}

// IsDecryptError reports whether err came from the decrypt path.
func IsDecryptError(err error) bool { return errors.Is(err, ErrPinCodeDecrypt) }
