package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/askdata-go/internal/config"
	"github.com/comigor/askdata-go/internal/datastore"
	"github.com/comigor/askdata-go/internal/engine"
	"github.com/comigor/askdata-go/internal/finalize"
	"github.com/comigor/askdata-go/internal/llm"
	"github.com/comigor/askdata-go/internal/logger"
	"github.com/comigor/askdata-go/internal/planner"
	"github.com/comigor/askdata-go/internal/prompt"
	"github.com/comigor/askdata-go/internal/session"
	"github.com/comigor/askdata-go/pkg/tools"
)

// app holds everything a command needs and owns its cleanup.
type app struct {
	db       datastore.Store
	sessions session.Store
	engine   *engine.Engine
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	texts, err := prompt.Load(cfg.Prompt.RulesPath, cfg.Prompt.SchemaPath)
	if err != nil {
		return nil, err
	}

	db, err := datastore.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open data store: %w", err)
	}
	logger.L.Info("data store ready", "driver", cfg.Database.Driver)

	sessions, err := openSessions(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	p := planner.New(llm.NewClient(cfg.LLM), tools.NewToolManager(tools.SQLTools(db, cfg.Database.MaxRows)...), planner.Options{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxIterations: cfg.Planner.MaxIterations,
		Timeout:       cfg.Planner.Timeout,
	})
	f := finalize.New(finalize.NewResolver(db, cfg.Resolver.LegacyLabels), nil)

	return &app{db: db, sessions: sessions, engine: engine.New(sessions, p, f, texts)}, nil
}

func openSessions(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client, err := session.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.L.Info("session store ready", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Session.TTL)
		return session.NewRedisStore(client, cfg.Session.TTL), nil
	default:
		var journal *session.Journal
		if cfg.Session.JournalPath != "" {
			j, err := session.OpenJournal(ctx, cfg.Session.JournalPath)
			if err != nil {
				return nil, fmt.Errorf("open session journal: %w", err)
			}
			journal = j
		}
		logger.L.Info("session store ready", "backend", "memory", "max_sessions", cfg.Session.MaxSessions,
			"ttl", cfg.Session.TTL, "journal", cfg.Session.JournalPath)
		return session.NewMemoryStore(session.MemoryOptions{
			MaxSessions: cfg.Session.MaxSessions,
			TTL:         cfg.Session.TTL,
			Journal:     journal,
		}), nil
	}
}

func (a *app) Close() error {
	return errors.Join(a.sessions.Close(), a.db.Close())
}
