package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrylevesque/pinauth/internal/auth"
	"github.com/harrylevesque/pinauth/internal/config"
	"github.com/harrylevesque/pinauth/internal/pepper"
	"github.com/harrylevesque/pinauth/internal/storage"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		PinCodeSize: 6,
		MaxAttempts: 3,
		Algorithm:   "aes-256-gcm",
		DataDir:     dir,
		Database:    filepath.Join(dir, "pinauth.db"),
		Pepper: config.PepperConfig{
			Backend:  backend,
			Dir:      filepath.Join(dir, "pepper"),
			Label:    "test",
			Generate: true,
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestNewWiresEachLocalBackend(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, testConfig(t, backend), zerolog.Nop())
			require.NoError(t, err)
			defer a.Close()

			require.NoError(t, a.Service.Register(ctx, storage.DefaultAccount, "123456"))
			require.NoError(t, a.Service.Login(ctx, storage.DefaultAccount, "123456"))
			err = a.Service.Login(ctx, storage.DefaultAccount, "654321")
			assert.ErrorIs(t, err, auth.ErrPinCodeMismatch)
			assert.Equal(t, 6, a.Manager.PinCodeSize())
		})
	}
}

func TestFileBackendSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendFile)

	a, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Service.Register(ctx, storage.DefaultAccount, "246810"))
	require.NoError(t, a.Close())

	b, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	assert.NoError(t, b.Service.Login(ctx, storage.DefaultAccount, "246810"))
}

func TestWithoutGeneration(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.Pepper.Generate = false

	a, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	err = a.Service.Register(ctx, storage.DefaultAccount, "123456")
	assert.ErrorIs(t, err, pepper.ErrPepperNotFound)
}

func TestNewBackendUnknown(t *testing.T) {
	cfg := testConfig(t, "keychain")
	_, err := NewBackend(context.Background(), cfg, nil)
	assert.Error(t, err)
}
