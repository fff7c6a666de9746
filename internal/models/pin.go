package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const redacted = "[PIN]"

// ErrInvalidEncoding is returned when a PIN is not valid UTF-8.
var ErrInvalidEncoding = errors.New("pin code is not valid UTF-8")

// PinCode is a user-chosen secret used for local authentication.
// Formatting, JSON and text encoding never reveal its value.
type PinCode string

// EncryptedPinCode is the ciphertext produced for a PinCode. Opaque to the core.
type EncryptedPinCode []byte

func (p PinCode) String() string { return redacted }

// Format implements fmt.Formatter so %v, %s, %q and %#v stay redacted.
func (p PinCode) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

func (p PinCode) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

func (p PinCode) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// IsEmpty reports whether the PIN has no characters.
func (p PinCode) IsEmpty() bool { return len(p) == 0 }

// Len returns the number of characters (code points) in the PIN.
func (p PinCode) Len() int { return utf8.RuneCountInString(string(p)) }

// Bytes returns the UTF-8 representation of the PIN. The caller owns the
// returned slice and should wipe it with Zero when done.
func (p PinCode) Bytes() ([]byte, error) {
	if !utf8.ValidString(string(p)) {
		return nil, ErrInvalidEncoding
	}
	return []byte(p), nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
