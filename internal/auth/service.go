package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harrylevesque/pinauth/internal/crypto"
	"github.com/harrylevesque/pinauth/internal/models"
	"github.com/harrylevesque/pinauth/internal/storage"
)

// DefaultMaxAttempts is the failed-login limit when none is configured.
const DefaultMaxAttempts = 5

// PinStore persists encrypted PINs and failed-attempt counters.
// *storage.PinStore implements it. Load returns storage.ErrNotFound when
// nothing is stored, Create returns storage.ErrExists when something is, and
// ReserveAttempt returns storage.ErrAttemptLimit once limit is reached.
type PinStore interface {
	Create(ctx context.Context, account string, env *models.Envelope) (string, error)
	Save(ctx context.Context, account string, env *models.Envelope) (string, error)
	Load(ctx context.Context, account string) (*models.Envelope, error)
	Exists(ctx context.Context, account string) (bool, error)
	Delete(ctx context.Context, account string) error
	Attempts(ctx context.Context, account string) (int, error)
	ReserveAttempt(ctx context.Context, account string, limit int) (int, error)
	ReleaseAttempt(ctx context.Context, account string) error
	ResetAttempts(ctx context.Context, account string) error
}

// Status summarizes an account's PIN state.
type Status struct {
	Registered        bool `json:"registered"`
	FailedAttempts    int  `json:"failed_attempts"`
	RemainingAttempts int  `json:"remaining_attempts"`
	LockedOut         bool `json:"locked_out"`
}

// Service runs the register / login / change flows on top of a
// PinCodeManager and a PinStore.
type Service struct {
	manager     *PinCodeManager
	store       PinStore
	algorithm   string
	maxAttempts int
	log         zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithAlgorithm sets the AEAD name recorded in new envelopes. It defaults to
// the algorithm of the manager's encrypter.
func WithAlgorithm(name string) ServiceOption {
	return func(s *Service) { s.algorithm = name }
}

func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func NewService(manager *PinCodeManager, store PinStore, opts ...ServiceOption) *Service {
	s := &Service{
		manager:     manager,
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.algorithm == "" {
		s.algorithm = manager.algorithm()
	}
	return s
}

// Manager exposes the underlying PinCodeManager.
func (s *Service) Manager() *PinCodeManager { return s.manager }

// Register validates pin against the registration policy, encrypts it and
// stores it for account. It returns ErrPinCodeExists if account already has
// a PIN; use ChangePin to replace one.
func (s *Service) Register(ctx context.Context, account string, pin models.PinCode) error {
	if err := s.manager.ValidateRegistration(pin); err != nil {
		return err
	}
	env, err := s.seal(ctx, account, pin)
	if err != nil {
		return err
	}

	id, err := s.store.Create(ctx, account, env)
	if errors.Is(err, storage.ErrExists) {
		s.log.Warn().Str("account", account).Msg("registration refused, pin code already set")
		return ErrPinCodeExists
	}
	if err != nil {
		return err
	}
	if err := s.store.ResetAttempts(ctx, account); err != nil {
		return err
	}
	s.log.Info().Str("account", account).Str("record_id", id).Str("key_id", env.KeyID).Msg("pin code registered")
	return nil
}

// Login checks pin against the stored PIN for account. Every check reserves
// one attempt before decrypting, so concurrent logins cannot exceed the
// lockout limit. A match resets the counter; a crypto failure gives the
// attempt back.
func (s *Service) Login(ctx context.Context, account string, pin models.PinCode) error {
	if err := s.manager.ValidateLogin(pin); err != nil {
		return err
	}

	env, err := s.store.Load(ctx, account)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoPinCode
	}
	if err != nil {
		return err
	}
	enc, err := s.encrypterFor(env.Algorithm)
	if err != nil {
		s.log.Error().Err(err).Str("account", account).Str("algorithm", env.Algorithm).Msg("stored pin uses an unknown algorithm")
		return err
	}

	n, err := s.store.ReserveAttempt(ctx, account, s.maxAttempts)
	if errors.Is(err, storage.ErrAttemptLimit) {
		s.log.Warn().Str("account", account).Int("max_attempts", s.maxAttempts).Msg("login refused, account locked")
		return ErrLockedOut
	}
	if err != nil {
		return err
	}

	keyID, err := s.manager.verifyWith(ctx, enc, pin, env.Ciphertext)
	switch {
	case err == nil:
		if err := s.store.ResetAttempts(ctx, account); err != nil {
			return err
		}
		s.log.Info().Str("account", account).Msg("pin login succeeded")
		if env.Algorithm != s.algorithm {
			s.upgrade(ctx, account, pin, env.Algorithm)
		}
		return nil
	case errors.Is(err, ErrPinCodeMismatch):
		s.log.Warn().Str("account", account).Int("attempts", n).Int("max_attempts", s.maxAttempts).Msg("pin login failed")
		if n >= s.maxAttempts {
			return fmt.Errorf("%w: %w", ErrPinCodeMismatch, ErrLockedOut)
		}
		return err
	default:
		if rerr := s.store.ReleaseAttempt(ctx, account); rerr != nil {
			s.log.Error().Err(rerr).Str("account", account).Msg("failed to release login attempt")
		}
		ev := s.log.Error().Err(err).Str("account", account)
		if env.KeyID != "" && keyID != "" && keyID != env.KeyID {
			ev = ev.Str("stored_key_id", env.KeyID).Str("key_id", keyID)
		}
		ev.Msg("pin verification failed")
		return err
	}
}

// ChangePin verifies oldPin and replaces it with newPin. newPin is validated
// first so a policy failure does not consume a login attempt.
func (s *Service) ChangePin(ctx context.Context, account string, oldPin, newPin models.PinCode) error {
	if err := s.manager.ValidateRegistration(newPin); err != nil {
		return err
	}
	if err := s.Login(ctx, account, oldPin); err != nil {
		return err
	}
	env, err := s.seal(ctx, account, newPin)
	if err != nil {
		return err
	}
	id, err := s.store.Save(ctx, account, env)
	if err != nil {
		return err
	}
	s.log.Info().Str("account", account).Str("record_id", id).Str("key_id", env.KeyID).Msg("pin code changed")
	return nil
}

// HasPinCode reports whether account has a registered PIN.
func (s *Service) HasPinCode(ctx context.Context, account string) (bool, error) {
	return s.store.Exists(ctx, account)
}

// Status returns the PIN state of account.
func (s *Service) Status(ctx context.Context, account string) (Status, error) {
	ok, err := s.store.Exists(ctx, account)
	if err != nil {
		return Status{}, err
	}
	n, err := s.store.Attempts(ctx, account)
	if err != nil {
		return Status{}, err
	}
	remaining := s.maxAttempts - n
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Registered:        ok,
		FailedAttempts:    n,
		RemainingAttempts: remaining,
		LockedOut:         remaining == 0,
	}, nil
}

// Forget deletes the stored PIN and counters for account.
func (s *Service) Forget(ctx context.Context, account string) error {
	if err := s.store.Delete(ctx, account); err != nil {
		return err
	}
	s.log.Warn().Str("account", account).Msg("pin code deleted")
	return nil
}

func (s *Service) seal(ctx context.Context, account string, pin models.PinCode) (*models.Envelope, error) {
	ct, keyID, err := s.manager.encryptWith(ctx, s.manager.encrypter, pin)
	if err != nil {
		s.log.Error().Err(err).Str("account", account).Msg("pin encryption failed")
		return nil, err
	}
	return models.NewEnvelope(s.algorithm, keyID, ct), nil
}

// encrypterFor returns the encrypter for an envelope's algorithm. Envelopes
// without one predate the field and use the current encrypter.
func (s *Service) encrypterFor(name string) (crypto.Encrypter, error) {
	if name == "" || name == s.algorithm {
		return s.manager.encrypter, nil
	}
	alg, err := crypto.ParseAlgorithm(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPinCodeDecrypt, err)
	}
	enc, err := crypto.NewDerivedKeyEncrypter(alg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPinCodeDecrypt, err)
	}
	return enc, nil
}

// upgrade re-encrypts a verified PIN under the current algorithm. Failure is
// logged only; the old envelope still verifies.
func (s *Service) upgrade(ctx context.Context, account string, pin models.PinCode, from string) {
	env, err := s.seal(ctx, account, pin)
	if err == nil {
		_, err = s.store.Save(ctx, account, env)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("account", account).Str("from", from).Msg("failed to re-encrypt pin code")
		return
	}
	s.log.Info().Str("account", account).Str("from", from).Str("to", s.algorithm).Msg("pin code re-encrypted")
}
