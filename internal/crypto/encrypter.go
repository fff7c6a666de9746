package crypto

import "crypto/ecdh"

// Encrypter performs authenticated encryption with a key derived from a
// pepper private key. Implementations must be safe for concurrent use.
type Encrypter interface {
	EncryptWithDerivedKey(privateKey *ecdh.PrivateKey, data, initialVector []byte) ([]byte, error)
	DecryptWithDerivedKey(privateKey *ecdh.PrivateKey, ciphertext, initialVector []byte) ([]byte, error)
}

// DerivedKeyEncrypter is the Encrypter used in production. It holds only the
// algorithm choice; derived keys live for a single call and are wiped.
type DerivedKeyEncrypter struct {
	alg Algorithm
}

var _ Encrypter = (*DerivedKeyEncrypter)(nil)

// NewDerivedKeyEncrypter returns an Encrypter for alg.
func NewDerivedKeyEncrypter(alg Algorithm) (*DerivedKeyEncrypter, error) {
	alg, err := ParseAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	return &DerivedKeyEncrypter{alg: alg}, nil
}

// Algorithm reports the AEAD in use.
func (e *DerivedKeyEncrypter) Algorithm() Algorithm { return e.alg }

// EncryptWithDerivedKey seals data under the key derived from privateKey.
// Every call draws a fresh nonce; the output is nonce || ciphertext || tag,
// authenticated together with initialVector.
func (e *DerivedKeyEncrypter) EncryptWithDerivedKey(privateKey *ecdh.PrivateKey, data, initialVector []byte) ([]byte, error) {
	key, err := DeriveSymmetricKey(privateKey, e.alg)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)
	return seal(e.alg, key, initialVector, data)
}

// DecryptWithDerivedKey reverses EncryptWithDerivedKey. Tampering, a different
// key or a different vector all fail with ErrDecryptionFailed.
func (e *DerivedKeyEncrypter) DecryptWithDerivedKey(privateKey *ecdh.PrivateKey, ciphertext, initialVector []byte) ([]byte, error) {
	key, err := DeriveSymmetricKey(privateKey, e.alg)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)
	return open(e.alg, key, initialVector, ciphertext)
}
