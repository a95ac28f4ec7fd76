// Package app wires a workspace into a ready engine.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/engine"
	"planline/internal/migrate"
	"planline/internal/provider"
)

// APIKeyEnv lists the environment variables consulted for the provider
// credential, in order.
var APIKeyEnv = []string{"PLANLINE_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"}

type Options struct {
	Workspace string
	// APIKey overrides the environment lookup when set.
	APIKey string
	// Config overrides the workspace planline.yml when set.
	Config *config.Config
	Logger *zap.Logger
}

// Env is an opened workspace: its database and the engine over it.
type Env struct {
	DB            *sql.DB
	Config        *config.Config
	Engine        engine.Engine
	SchemaVersion int
}

func (e *Env) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

// Open runs workspace, database, migrations, config, provider and engine setup
// in that order.
func Open(ctx context.Context, opts Options) (*Env, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.LoadOrDefault(opts.Workspace)
		if err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	version, err := migrate.Version(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = LookupAPIKey()
	}
	client, err := provider.FromConfig(ctx, cfg.Provider, apiKey, logger.Named("provider"))
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger.Debug("workspace opened",
		zap.String("db", db.Path(opts.Workspace)),
		zap.Int("schema_version", version),
		zap.String("provider", client.Backend.Name()))
	return &Env{
		DB:            conn,
		Config:        cfg,
		Engine:        engine.New(conn, cfg, client, logger.Named("engine")),
		SchemaVersion: version,
	}, nil
}

// LookupAPIKey returns the first non-empty credential from APIKeyEnv.
func LookupAPIKey() string {
	for _, name := range APIKeyEnv {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
