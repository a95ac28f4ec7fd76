// Package engine owns goal and task state: it validates goals, drives task
// synthesis and keeps each goal's task references consistent with the tasks
// persisted for it.
package engine

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planline/internal/config"
	"planline/internal/events"
	"planline/internal/provider"
	"planline/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Provider *provider.Client
	Logger   *zap.Logger
	Leases   *GoalLeases
	Now      func() time.Time
	NewID    func() string
}

// New wires an engine over an open, migrated database. A nil provider client
// leaves synthesis on the built-in generator.
func New(db *sql.DB, cfg *config.Config, gen *provider.Client, logger *zap.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Config:   cfg,
		Provider: gen,
		Logger:   logger,
		Leases:   NewGoalLeases(),
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
	e.Events = events.Writer{Now: e.now}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e Engine) config() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

var fallbackLeases = NewGoalLeases()

func (e Engine) leases() *GoalLeases {
	if e.Leases != nil {
		return e.Leases
	}
	return fallbackLeases
}
