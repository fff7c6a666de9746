package pepper

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/harrylevesque/pinauth/internal/crypto"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewSQLiteBackend(ctx, openTestDB(t), "device-a")
	require.NoError(t, err)

	_, err = b.Load(ctx)
	require.ErrorIs(t, err, ErrPepperNotFound)

	m, err := NewMaterial(crypto.AlgorithmChaCha20Poly1305)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, m))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.True(t, m.Key.Equal(got.Key))
	assert.Equal(t, m.InitialVector, got.InitialVector)
	assert.Equal(t, m.CreatedAt.Unix(), got.CreatedAt.Unix())

	// saving again keeps the first row
	m2, err := NewMaterial(crypto.AlgorithmChaCha20Poly1305)
	require.NoError(t, err)
	assert.ErrorIs(t, b.Save(ctx, m2), ErrPepperExists)
	got, err = b.Load(ctx)
	require.NoError(t, err)
	assert.True(t, m.Key.Equal(got.Key))

	require.NoError(t, b.Delete(ctx))
	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, ErrPepperNotFound)
}

func TestSQLiteBackendLabelsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	a, err := NewSQLiteBackend(ctx, db, "device-a")
	require.NoError(t, err)
	b, err := NewSQLiteBackend(ctx, db, "device-b")
	require.NoError(t, err)

	ka, err := NewSource(a, crypto.AlgorithmAESGCM).PepperKey(ctx)
	require.NoError(t, err)
	kb, err := NewSource(b, crypto.AlgorithmAESGCM).PepperKey(ctx)
	require.NoError(t, err)
	assert.False(t, ka.Equal(kb))
}

func TestSQLiteBackendRequiresLabel(t *testing.T) {
	_, err := NewSQLiteBackend(context.Background(), openTestDB(t), "")
	assert.Error(t, err)
}

func TestSQLiteBackendCorruptKey(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	b, err := NewSQLiteBackend(ctx, db, "device-a")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO pepper (label, key_id, private_key, initial_vector, created_at) VALUES (?, ?, ?, ?, ?)`,
		"device-a", "x", []byte("junk"), make([]byte, 12), 0)
	require.NoError(t, err)

	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptPepper)
}

func TestSQLiteBackendLosingCreatorReloads(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	b, err := NewSQLiteBackend(ctx, db, "device-a")
	require.NoError(t, err)

	winner, err := NewMaterial(crypto.AlgorithmAESGCM)
	require.NoError(t, err)
	src := NewSource(racingBackend{Backend: b, first: winner}, crypto.AlgorithmAESGCM)

	got, err := src.Material(ctx)
	require.NoError(t, err)
	assert.True(t, winner.Key.Equal(got.Key))
}
