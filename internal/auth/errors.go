package auth

import (
	"errors"

	"github.com/harrylevesque/pinauth/internal/models"
)

var (
	// ErrPinCodeIsEmpty is returned by both validation paths for "".
	ErrPinCodeIsEmpty = errors.New("pin code is empty")
	// ErrPinCodeTooShort is returned by registration validation only.
	ErrPinCodeTooShort = errors.New("pin code is too short")
	// ErrPinCodeDecrypt wraps every failure on the decrypt path, so callers
	// can tell "cannot verify" apart from "cannot store".
	ErrPinCodeDecrypt = errors.New("cannot decrypt pin code")
	// ErrPinCodeMismatch is returned when a PIN does not match the stored one.
	ErrPinCodeMismatch = errors.New("pin code does not match")
	// ErrLockedOut is returned once the failed-attempt limit is reached.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrNoPinCode is returned by login when no PIN was registered.
	ErrNoPinCode = errors.New("no pin code registered")
	// ErrPinCodeExists is returned by registration when a PIN is already set.
	ErrPinCodeExists = errors.New("pin code already registered")
	// ErrInvalidEncoding is returned when a PIN is not valid UTF-8.
	ErrInvalidEncoding = models.ErrInvalidEncoding
)

// ErrorKind classifies errors for presentation. Every error maps to exactly
// one kind; unknown errors are KindCrypto.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindPinCodeIsEmpty
	KindPinCodeTooShort
	KindPinCodeMismatch
	KindLockedOut
	KindNoPinCode
	KindInvalidEncoding
	KindCrypto
	KindPinCodeExists
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPinCodeIsEmpty:
		return "pin_code_is_empty"
	case KindPinCodeTooShort:
		return "pin_code_too_short"
	case KindPinCodeMismatch:
		return "pin_code_mismatch"
	case KindLockedOut:
		return "locked_out"
	case KindNoPinCode:
		return "no_pin_code"
	case KindInvalidEncoding:
		return "invalid_encoding"
	case KindPinCodeExists:
		return "pin_code_exists"
	default:
		return "crypto"
	}
}

// Kind returns the ErrorKind for err.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPinCodeIsEmpty):
		return KindPinCodeIsEmpty
	case errors.Is(err, ErrPinCodeTooShort):
		return KindPinCodeTooShort
	case errors.Is(err, ErrLockedOut):
		return KindLockedOut
	case errors.Is(err, ErrPinCodeMismatch):
		return KindPinCodeMismatch
	case errors.Is(err, ErrNoPinCode):
		return KindNoPinCode
	case errors.Is(err, ErrPinCodeExists):
		return KindPinCodeExists
	case errors.Is(err, ErrPinCodeDecrypt):
		return KindCrypto
	case errors.Is(err, ErrInvalidEncoding):
		return KindInvalidEncoding
	default:
		return KindCrypto
	}
}
