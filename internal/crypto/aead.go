package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names the AEAD used for PIN encryption.
type Algorithm string

const (
	AlgorithmAESGCM           Algorithm = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"

	// DefaultAlgorithm is used when the configuration does not pick one.
	DefaultAlgorithm = AlgorithmAESGCM
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidKeyLength     = errors.New("invalid key length")
	ErrInvalidInitialVector = errors.New("invalid initial vector")
	ErrDecryptionFailed     = errors.New("decryption failed")
)

// ParseAlgorithm validates an algorithm name. An empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "":
		return DefaultAlgorithm, nil
	case AlgorithmAESGCM, AlgorithmChaCha20Poly1305:
		return Algorithm(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// NonceSize is the nonce length of the AEAD. Pepper initial vectors use the
// same length.
func (a Algorithm) NonceSize() int {
	switch a {
	case AlgorithmChaCha20Poly1305:
		return chacha20poly1305.NonceSize
	default:
		return 12
	}
}

// GenerateInitialVector returns a random vector sized for alg.
func GenerateInitialVector(alg Algorithm) ([]byte, error) {
	if _, err := ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}
	return generateRandomBytes(alg.NonceSize())
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	if len(key) != derivedKeySize {
		return nil, ErrInvalidKeyLength
	}
	switch alg {
	case AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case AlgorithmChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// seal encrypts plaintext under a fresh random nonce and returns
// nonce || ciphertext || tag. The pepper initial vector is bound as
// associated data, so the same vector is needed to open the result.
func seal(alg Algorithm, key, iv, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidInitialVector, len(iv), aead.NonceSize())
	}
	nonce, err := generateRandomBytes(aead.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, len(nonce), len(nonce)+len(plaintext)+aead.Overhead())
	copy(out, nonce)
	return aead.Seal(out, nonce, plaintext, iv), nil
}

func open(alg Algorithm, key, iv, sealed []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidInitialVector, len(iv), aead.NonceSize())
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ciphertext, iv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return pt, nil
}

// SealedNonce returns the per-message nonce at the front of a sealed value.
func SealedNonce(alg Algorithm, sealed []byte) []byte {
	n := alg.NonceSize()
	if len(sealed) < n {
		return nil
	}
	return sealed[:n]
}

// generateRandomBytes returns length bytes from crypto/rand.
func generateRandomBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
