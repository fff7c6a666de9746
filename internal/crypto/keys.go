package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	derivedKeySize = 32
	derivationInfo = "pinauth-pepper-key/v1/"
	pemBlockType   = "PRIVATE KEY"
)

var (
	// ErrNilPrivateKey is returned when no pepper key handle was supplied.
	ErrNilPrivateKey = errors.New("nil pepper private key")
	// ErrInvalidPepperKey is returned for keys that are not P-256 or fail to parse.
	ErrInvalidPepperKey = errors.New("invalid pepper key")
)

// DeriveSymmetricKey derives a 32-byte AEAD key from the pepper private key.
// The key agrees with its own public half (ECDH P-256) and the shared secret is
// expanded with HKDF-SHA256, bound to the algorithm name. The same key and
// algorithm always yield the same output.
func DeriveSymmetricKey(priv *ecdh.PrivateKey, alg Algorithm) ([]byte, error) {
	if priv == nil {
		return nil, ErrNilPrivateKey
	}
	shared, err := priv.ECDH(priv.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	defer zeroBytes(shared)

	h := hkdf.New(sha256.New, shared, nil, []byte(derivationInfo+string(alg)))
	out := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return out, nil
}

// GeneratePepperKey creates a new P-256 pepper key.
func GeneratePepperKey() (*ecdh.PrivateKey, error) {
	return ecdh.P256().GenerateKey(rand.Reader)
}

// KeyID returns a short stable identifier for a pepper key: the first 8 bytes
// of SHA-256 over the uncompressed public point, hex encoded.
func KeyID(priv *ecdh.PrivateKey) string {
	if priv == nil {
		return ""
	}
	sum := sha256.Sum256(priv.PublicKey().Bytes())
	return hex.EncodeToString(sum[:8])
}

// MarshalPepperKeyDER encodes the key as PKCS#8 DER.
func MarshalPepperKeyDER(priv *ecdh.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, ErrNilPrivateKey
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal pepper key: %w", err)
	}
	return der, nil
}

// MarshalPepperKey encodes the key as a PKCS#8 PEM block.
func MarshalPepperKey(priv *ecdh.PrivateKey) ([]byte, error) {
	der, err := MarshalPepperKeyDER(priv)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(der)
	return pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: der}), nil
}

// ParsePepperKey decodes a PKCS#8 PEM block produced by MarshalPepperKey.
func ParsePepperKey(data []byte) (*ecdh.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemBlockType {
		return nil, fmt.Errorf("%w: no PEM private key block", ErrInvalidPepperKey)
	}
	return ParsePepperKeyDER(block.Bytes)
}

// ParsePepperKeyDER decodes PKCS#8 DER and requires a P-256 key.
func ParsePepperKeyDER(der []byte) (*ecdh.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPepperKey, err)
	}

	var priv *ecdh.PrivateKey
	switch k := parsed.(type) {
	case *ecdsa.PrivateKey:
		priv, err = k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPepperKey, err)
		}
	case *ecdh.PrivateKey:
		priv = k
	default:
		return nil, fmt.Errorf("%w: unexpected key type %T", ErrInvalidPepperKey, parsed)
	}
	if priv.Curve() != ecdh.P256() {
		return nil, fmt.Errorf("%w: curve must be P-256", ErrInvalidPepperKey)
	}
	return priv, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
