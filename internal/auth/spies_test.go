package auth

import (
	"context"
	"crypto/ecdh"
	"sync"

	"github.com/harrylevesque/pinauth/internal/pepper"
)

// encrypterSpy records calls and returns canned values.
type encrypterSpy struct {
	mu sync.Mutex

	encryptCalls        int
	encryptReceivedKey  *ecdh.PrivateKey
	encryptReceivedData []byte
	encryptReceivedIV   []byte
	encryptReturnValue  []byte
	encryptError        error

	decryptCalls       int
	decryptReturnValue []byte
	decryptError       error
}

func (s *encrypterSpy) EncryptWithDerivedKey(key *ecdh.PrivateKey, data, iv []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptCalls++
	s.encryptReceivedKey = key
	// the manager wipes its plaintext buffer after the call
	s.encryptReceivedData = append([]byte(nil), data...)
	s.encryptReceivedIV = iv
	return s.encryptReturnValue, s.encryptError
}

func (s *encrypterSpy) DecryptWithDerivedKey(_ *ecdh.PrivateKey, _, _ []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decryptCalls++
	if s.decryptReturnValue == nil {
		return nil, s.decryptError
	}
	return append([]byte(nil), s.decryptReturnValue...), s.decryptError
}

// pepperSpy is a pepper.Repository double.
type pepperSpy struct {
	mu sync.Mutex

	keyCalls       int
	keyReturnValue *ecdh.PrivateKey
	keyError       error

	ivCalls       int
	ivReturnValue []byte
	ivError       error
}

func (s *pepperSpy) PepperKey(context.Context) (*ecdh.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyCalls++
	return s.keyReturnValue, s.keyError
}

func (s *pepperSpy) PepperInitialVector(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ivCalls++
	return s.ivReturnValue, s.ivError
}

// materialSpy is a pepper.MaterialRepository double.
type materialSpy struct {
	pepperSpy
	materialCalls int
	material      *pepper.Material
}

func (s *materialSpy) Material(context.Context) (*pepper.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materialCalls++
	return s.material, nil
}
