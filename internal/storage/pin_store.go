package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrylevesque/pinauth/internal/models"
)

var (
	// ErrNotFound is returned when no PIN record exists for an account.
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned by Create when the account already has a record.
	ErrExists = errors.New("record already exists")
	// ErrAttemptLimit is returned by ReserveAttempt once the limit is reached.
	ErrAttemptLimit = errors.New("attempt limit reached")
)

// DefaultAccount is the account name used by single-user wallets.
const DefaultAccount = "default"

// PinStore persists encrypted PIN envelopes and failed-attempt counters.
type PinStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewPinStore initializes the schema on db. The caller owns db.
func NewPinStore(ctx context.Context, db *sql.DB) (*PinStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS pin_codes (
		account TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		envelope BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pin_attempts (
		account TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PinStore{db: db}, nil
}

// Create stores env for account only if it has no record yet. It returns the
// new record id or ErrExists.
func (s *PinStore) Create(ctx context.Context, account string, env *models.Envelope) (string, error) {
	blob, err := env.Marshal()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pin_codes (account, record_id, envelope, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO NOTHING`,
		account, id, blob, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("create pin code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("create pin code: %w", err)
	}
	if n == 0 {
		return "", ErrExists
	}
	return id, nil
}

// Save stores env for account, replacing any previous record. It returns the
// new record id.
func (s *PinStore) Save(ctx context.Context, account string, env *models.Envelope) (string, error) {
	blob, err := env.Marshal()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pin_codes (account, record_id, envelope, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			record_id = excluded.record_id,
			envelope = excluded.envelope,
			updated_at = excluded.updated_at`,
		account, id, blob, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("save pin code: %w", err)
	}
	return id, nil
}

// Load returns the stored envelope for account.
func (s *PinStore) Load(ctx context.Context, account string) (*models.Envelope, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT envelope FROM pin_codes WHERE account = ?`, account).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pin code: %w", err)
	}
	return models.UnmarshalEnvelope(blob)
}

// Exists reports whether account has a stored PIN.
func (s *PinStore) Exists(ctx context.Context, account string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pin_codes WHERE account = ?`, account).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the PIN and attempt counter for account in one transaction.
func (s *PinStore) Delete(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pin_codes WHERE account = ?`, account); err != nil {
		return fmt.Errorf("delete pin code: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pin_attempts WHERE account = ?`, account); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return tx.Commit()
}

// Attempts returns the failed-attempt count for account.
func (s *PinStore) Attempts(ctx context.Context, account string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM pin_attempts WHERE account = ?`, account).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// ReserveAttempt counts one attempt for account and returns the new count,
// unless limit attempts are already counted, in which case it returns
// ErrAttemptLimit. Check and increment are one statement, so concurrent
// callers never reserve more than limit between them.
func (s *PinStore) ReserveAttempt(ctx context.Context, account string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pin_attempts (account, count, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(account) DO UPDATE SET
			count = pin_attempts.count + 1,
			updated_at = excluded.updated_at
		WHERE pin_attempts.count < ?
		RETURNING count`,
		account, time.Now().Unix(), limit).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAttemptLimit
	}
	if err != nil {
		return 0, fmt.Errorf("reserve attempt: %w", err)
	}
	return n, nil
}

// ReleaseAttempt gives back one reserved attempt. The count never drops below zero.
func (s *PinStore) ReleaseAttempt(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE pin_attempts SET count = MAX(count - 1, 0), updated_at = ? WHERE account = ?`,
		time.Now().Unix(), account)
	if err != nil {
		return fmt.Errorf("release attempt: %w", err)
	}
	return nil
}

// ResetAttempts clears the failed-attempt count for account.
func (s *PinStore) ResetAttempts(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM pin_attempts WHERE account = ?`, account)
	return err
}
