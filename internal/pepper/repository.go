// Package pepper supplies the device-bound key material PIN encryption is
// derived from: a P-256 private key and an initial vector.
//
// A Source fronts a Backend (memory, file, SQLite or SSM Parameter Store).
// Material is generated on first use and read back on every later call; the
// Source never caches it between calls.
package pepper

import (
	"context"
	"crypto/ecdh"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrylevesque/pinauth/internal/crypto"
)

var (
	// ErrPepperNotFound is returned by a Backend with nothing stored, and by a
	// Source with generation disabled.
	ErrPepperNotFound = errors.New("pepper material not found")
	// ErrCorruptPepper is returned when stored material cannot be decoded.
	ErrCorruptPepper = errors.New("pepper material is corrupt")
	// ErrPepperExists is returned by Backend.Save when material is already stored.
	ErrPepperExists = errors.New("pepper material already exists")
)

// Repository is the capability PinCodeManager depends on. Both calls are
// fallible and independent. Implementations must be safe for concurrent use.
type Repository interface {
	PepperKey(ctx context.Context) (*ecdh.PrivateKey, error)
	PepperInitialVector(ctx context.Context) ([]byte, error)
}

// MaterialRepository is a Repository that can return the key and initial
// vector from a single read, so both belong to the same generation.
// *Source implements it.
type MaterialRepository interface {
	Repository
	Material(ctx context.Context) (*Material, error)
}

// Material is one generation of pepper.
type Material struct {
	Key           *ecdh.PrivateKey
	InitialVector []byte
	CreatedAt     time.Time
}

// KeyID identifies the material's key; see crypto.KeyID.
func (m *Material) KeyID() string { return crypto.KeyID(m.Key) }

// Backend persists pepper material. Load returns ErrPepperNotFound when empty.
// Save only creates: it returns ErrPepperExists instead of replacing stored
// material, and must be atomic across processes sharing the store.
type Backend interface {
	Load(ctx context.Context) (*Material, error)
	Save(ctx context.Context, m *Material) error
	Delete(ctx context.Context) error
}

// Option configures a Source.
type Option func(*Source)

// WithoutGeneration makes the Source fail with ErrPepperNotFound instead of
// creating material on first access.
func WithoutGeneration() Option {
	return func(s *Source) { s.generate = false }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Source) { s.log = l }
}

// Source implements Repository over a Backend.
type Source struct {
	backend  Backend
	alg      crypto.Algorithm
	generate bool
	log      zerolog.Logger

	mu sync.Mutex
}

var _ MaterialRepository = (*Source)(nil)

// NewSource returns a Source whose initial vectors are sized for alg.
func NewSource(backend Backend, alg crypto.Algorithm, opts ...Option) *Source {
	s := &Source{
		backend:  backend,
		alg:      alg,
		generate: true,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PepperKey returns the stored pepper key, generating material if needed.
func (s *Source) PepperKey(ctx context.Context) (*ecdh.PrivateKey, error) {
	m, err := s.Material(ctx)
	if err != nil {
		return nil, err
	}
	return m.Key, nil
}

// PepperInitialVector returns the stored initial vector, generating material if needed.
func (s *Source) PepperInitialVector(ctx context.Context) ([]byte, error) {
	m, err := s.Material(ctx)
	if err != nil {
		return nil, err
	}
	return m.InitialVector, nil
}

// KeyID returns the identifier of the current pepper key.
func (s *Source) KeyID(ctx context.Context) (string, error) {
	m, err := s.Material(ctx)
	if err != nil {
		return "", err
	}
	return m.KeyID(), nil
}

// Material loads the current material from the backend, generating it first
// if none is stored and generation is enabled.
func (s *Source) Material(ctx context.Context) (*Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.backend.Load(ctx)
	if errors.Is(err, ErrPepperNotFound) && s.generate {
		m, err = s.create(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(m.InitialVector) != s.alg.NonceSize() {
		return nil, fmt.Errorf("%w: initial vector is %d bytes, want %d", ErrCorruptPepper, len(m.InitialVector), s.alg.NonceSize())
	}
	return m, nil
}

// Init creates pepper material if none exists and returns the current material.
func (s *Source) Init(ctx context.Context) (*Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.backend.Load(ctx)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrPepperNotFound) {
		return nil, err
	}
	return s.create(ctx)
}

// Reset deletes the stored material. Everything encrypted under it becomes
// unreadable.
func (s *Source) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx); err != nil {
		return err
	}
	s.log.Warn().Msg("pepper material deleted")
	return nil
}

// create must be called with s.mu held.
func (s *Source) create(ctx context.Context) (*Material, error) {
	m, err := NewMaterial(s.alg)
	if err != nil {
		return nil, err
	}
	err = s.backend.Save(ctx, m)
	if errors.Is(err, ErrPepperExists) {
		// another process created it between our Load and Save
		stored, lerr := s.backend.Load(ctx)
		if lerr != nil {
			return nil, fmt.Errorf("load pepper after losing creation race: %w", lerr)
		}
		s.log.Info().Str("key_id", stored.KeyID()).Msg("using pepper material created concurrently")
		return stored, nil
	}
	if err != nil {
		return nil, fmt.Errorf("save pepper: %w", err)
	}
	s.log.Info().Str("key_id", m.KeyID()).Str("algorithm", string(s.alg)).Msg("pepper material generated")
	return m, nil
}

// NewMaterial generates a fresh key and initial vector for alg.
func NewMaterial(alg crypto.Algorithm) (*Material, error) {
	key, err := crypto.GeneratePepperKey()
	if err != nil {
		return nil, fmt.Errorf("generate pepper key: %w", err)
	}
	iv, err := crypto.GenerateInitialVector(alg)
	if err != nil {
		return nil, fmt.Errorf("generate initial vector: %w", err)
	}
	return &Material{Key: key, InitialVector: iv, CreatedAt: time.Now().UTC().Truncate(time.Second)}, nil
}
