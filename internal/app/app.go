// Package app assembles the pinauth components from a Config.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harrylevesque/pinauth/internal/auth"
	"github.com/harrylevesque/pinauth/internal/config"
	"github.com/harrylevesque/pinauth/internal/crypto"
	"github.com/harrylevesque/pinauth/internal/pepper"
	"github.com/harrylevesque/pinauth/internal/storage"
)

// App holds the wired components. Close releases the database.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Pepper  *pepper.Source
	Manager *auth.PinCodeManager
	Store   *storage.PinStore
	Service *auth.Service
	Log     zerolog.Logger
}

// New opens storage and builds the pepper source, encrypter, manager and
// service described by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *sql.DB, log zerolog.Logger) (*App, error) {
	alg := cfg.AlgorithmValue()

	backend, err := NewBackend(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	opts := []pepper.Option{pepper.WithLogger(log.With().Str("component", "pepper").Logger())}
	if !cfg.Pepper.Generate {
		opts = append(opts, pepper.WithoutGeneration())
	}
	source := pepper.NewSource(backend, alg, opts...)

	encrypter, err := crypto.NewDerivedKeyEncrypter(alg)
	if err != nil {
		return nil, err
	}
	manager := auth.NewPinCodeManager(cfg.PinCodeSize, encrypter, source)

	store, err := storage.NewPinStore(ctx, db)
	if err != nil {
		return nil, err
	}

	service := auth.NewService(manager, store,
		auth.WithMaxAttempts(cfg.MaxAttempts),
		auth.WithAlgorithm(string(alg)),
		auth.WithServiceLogger(log.With().Str("component", "auth").Logger()),
	)

	return &App{
		Config:  cfg,
		DB:      db,
		Pepper:  source,
		Manager: manager,
		Store:   store,
		Service: service,
		Log:     log,
	}, nil
}

// NewBackend returns the pepper backend selected by cfg.Pepper.Backend.
func NewBackend(ctx context.Context, cfg *config.Config, db *sql.DB) (pepper.Backend, error) {
	switch cfg.Pepper.Backend {
	case config.BackendFile:
		return pepper.NewFileBackend(cfg.Pepper.Dir), nil
	case config.BackendSQLite:
		return pepper.NewSQLiteBackend(ctx, db, cfg.Pepper.Label)
	case config.BackendSSM:
		return pepper.NewSSMBackendFromConfig(ctx, cfg.Pepper.SSMRegion, cfg.Pepper.SSMPrefix, cfg.Pepper.KMSKeyID)
	case config.BackendMemory:
		return pepper.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown pepper backend %q", cfg.Pepper.Backend)
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}
