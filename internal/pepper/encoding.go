package pepper

import (
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/harrylevesque/pinauth/internal/crypto"
)

const (
	headerInitialVector = "Initial-Vector"
	headerCreatedAt     = "Created-At"
)

// encodeMaterial writes the key as a PKCS#8 PEM block carrying the initial
// vector and creation time as headers, so one write stores a whole generation.
func encodeMaterial(m *Material) ([]byte, error) {
	der, err := crypto.MarshalPepperKeyDER(m.Key)
	if err != nil {
		return nil, err
	}
	defer zeroDER(der)
	return pem.EncodeToMemory(&pem.Block{
		Type: "PRIVATE KEY",
		Headers: map[string]string{
			headerInitialVector: hex.EncodeToString(m.InitialVector),
			headerCreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
		},
		Bytes: der,
	}), nil
}

func decodeMaterial(data []byte) (*Material, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrCorruptPepper)
	}
	key, err := crypto.ParsePepperKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPepper, err)
	}
	ivHex, ok := block.Headers[headerInitialVector]
	if !ok {
		return nil, fmt.Errorf("%w: initial vector missing", ErrCorruptPepper)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("%w: initial vector: %v", ErrCorruptPepper, err)
	}
	m := &Material{Key: key, InitialVector: iv}
	if ts, ok := block.Headers[headerCreatedAt]; ok {
		if m.CreatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("%w: created at: %v", ErrCorruptPepper, err)
		}
	}
	return m, nil
}

func zeroDER(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
