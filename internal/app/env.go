package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/report"
	"github.com/rbright/rehearse/internal/store"
	"github.com/rbright/rehearse/internal/version"
)

// env holds the collaborators shared by account, report and interview
// commands.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *store.DB
	session *store.Scope
	tokens  store.Tokens
	client  *api.Client
	reports *report.Service
}

func openEnv(ctx context.Context, cfg config.Config, logger *slog.Logger) (*env, error) {
	path, err := config.StorePath(cfg)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	tokens := store.Tokens{KV: db.Scope(store.NamespaceAuth), Override: cfg.API.Token}
	client, err := api.New(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Tokens:    tokens,
		Logger:    logger,
		UserAgent: version.UserAgent(),
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sessionKV := db.Scope(store.NamespaceSession)
	return &env{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		session: sessionKV,
		tokens:  tokens,
		client:  client,
		reports: report.NewService(client, sessionKV, db, logger),
	}, nil
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		e.logger.Warn("close store failed", "error", err.Error())
	}
}

type storedSession struct {
	ID       string
	Progress string
}

// storedSession reads the session namespace left by upload or an earlier
// interview run.
func (e *env) storedSession(ctx context.Context) (storedSession, error) {
	id, _, err := e.session.Get(ctx, store.KeySessionID)
	if err != nil {
		return storedSession{}, fmt.Errorf("read session id: %w", err)
	}
	out := storedSession{ID: strings.TrimSpace(id)}
	progress, _, err := e.session.Get(ctx, store.KeyProgress)
	if err != nil {
		return storedSession{}, fmt.Errorf("read progress: %w", err)
	}
	total, _, err := e.session.Get(ctx, store.KeyTotal)
	if err != nil {
		return storedSession{}, fmt.Errorf("read total: %w", err)
	}
	if progress != "" && total != "" && progress != "0" {
		out.Progress = fmt.Sprintf("question %s of %s", progress, total)
	}
	return out, nil
}

// reportOptions resolves output options from flags over config.
func (e *env) reportOptions(format string, withHistory bool) report.Options {
	opts := report.Options{Format: e.cfg.Report.Format, ShowHistory: e.cfg.Report.ShowHistory || withHistory}
	if f := strings.TrimSpace(format); f != "" {
		opts.Format = f
	}
	return opts
}
