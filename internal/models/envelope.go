package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// EnvelopeVersion is the current on-disk layout of a stored PIN record.
const EnvelopeVersion = 1

// ErrUnsupportedEnvelope is returned for records written by an unknown layout.
var ErrUnsupportedEnvelope = errors.New("unsupported envelope version")

// Envelope wraps an EncryptedPinCode with the metadata needed to decrypt it
// later: which AEAD produced it and which pepper key it was derived from.
type Envelope struct {
	Version    int              `cbor:"1,keyasint"`
	Algorithm  string           `cbor:"2,keyasint"`
	KeyID      string           `cbor:"3,keyasint"`
	Ciphertext EncryptedPinCode `cbor:"4,keyasint"`
	CreatedAt  time.Time        `cbor:"5,keyasint"`
}

// NewEnvelope builds a current-version envelope stamped with now.
func NewEnvelope(algorithm, keyID string, ct EncryptedPinCode) *Envelope {
	return &Envelope{
		Version:    EnvelopeVersion,
		Algorithm:  algorithm,
		KeyID:      keyID,
		Ciphertext: ct,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

// Marshal encodes the envelope as CBOR.
func (e *Envelope) Marshal() ([]byte, error) {
	return cbor.Marshal(e)
}

// UnmarshalEnvelope decodes a CBOR envelope and checks its version.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEnvelope, e.Version)
	}
	return &e, nil
}
