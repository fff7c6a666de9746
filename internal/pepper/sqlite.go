package pepper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harrylevesque/pinauth/internal/crypto"
)

// SQLiteBackend stores pepper material in a table keyed by label, typically
// the device label from utils.DeviceLabel. The *sql.DB is owned by the caller.
type SQLiteBackend struct {
	db    *sql.DB
	label string
}

// NewSQLiteBackend creates the pepper table if needed.
func NewSQLiteBackend(ctx context.Context, db *sql.DB, label string) (*SQLiteBackend, error) {
	if label == "" {
		return nil, errors.New("pepper label is required")
	}
	schema := `
	CREATE TABLE IF NOT EXISTS pepper (
		label TEXT PRIMARY KEY,
		key_id TEXT NOT NULL,
		private_key BLOB NOT NULL,
		initial_vector BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize pepper schema: %w", err)
	}
	return &SQLiteBackend{db: db, label: label}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context) (*Material, error) {
	var (
		der, iv   []byte
		createdAt int64
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT private_key, initial_vector, created_at FROM pepper WHERE label = ?`, b.label,
	).Scan(&der, &iv, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPepperNotFound
	}
	if err != nil {
		return nil, err
	}

	key, err := crypto.ParsePepperKeyDER(der)
	zeroDER(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPepper, err)
	}
	return &Material{Key: key, InitialVector: iv, CreatedAt: time.Unix(createdAt, 0).UTC()}, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, m *Material) error {
	der, err := crypto.MarshalPepperKeyDER(m.Key)
	if err != nil {
		return err
	}
	defer zeroDER(der)
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO pepper (label, key_id, private_key, initial_vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(label) DO NOTHING`,
		b.label, crypto.KeyID(m.Key), der, m.InitialVector, m.CreatedAt.Unix())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPepperExists
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM pepper WHERE label = ?`, b.label)
	return err
}
