// Package report generates, caches and lists interview reports.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/session"
	"github.com/rbright/rehearse/internal/store"
)

// API is the subset of the interview service the report pages use.
type API interface {
	GenerateReport(ctx context.Context, sessionID string) (api.Report, error)
	ReportDetail(ctx context.Context, sessionID string) (api.Report, error)
	ReportHistory(ctx context.Context) ([]api.ReportSummary, error)
	Profile(ctx context.Context) (api.Profile, error)
}

// Cache stores fetched reports by session id.
type Cache interface {
	SaveReport(ctx context.Context, sessionID string, report api.Report) error
	LoadReport(ctx context.Context, sessionID string) (api.Report, bool, error)
}

// Service backs the report, history and profile commands.
type Service struct {
	api     API
	session store.KV
	cache   Cache
	logger  *slog.Logger
}

// NewService wires a Service. cache may be nil.
func NewService(client API, sessionKV store.KV, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Service{api: client, session: sessionKV, cache: cache, logger: logger}
}

// Generated is the outcome of Generate.
type Generated struct {
	SessionID string
	Report    api.Report
}

// Generate requests the report for the stored session, caches it and clears
// the session namespace.
func (s *Service) Generate(ctx context.Context) (Generated, error) {
	id, ok, err := s.session.Get(ctx, store.KeySessionID)
	if err != nil {
		return Generated{}, fmt.Errorf("read session id: %w", err)
	}
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return Generated{}, session.ErrSessionRequired
	}

	rep, err := s.api.GenerateReport(ctx, id)
	if errors.Is(err, failure.ErrSessionAlreadyFinalized) {
		// Generated earlier; serve the stored copy when there is one.
		if cached, found := s.cached(ctx, id); found {
			rep, err = cached, nil
		}
	}
	if err != nil {
		return Generated{}, err
	}

	s.save(ctx, id, rep)
	if err := s.session.Clear(ctx); err != nil {
		return Generated{}, fmt.Errorf("clear session: %w", err)
	}
	s.logger.InfoContext(ctx, "report generated",
		"session_id", id,
		"questions", rep.TotalQuestions,
		"responses", len(rep.DetailedResponses),
	)
	return Generated{SessionID: id, Report: rep}, nil
}

// Show returns the report for id, preferring the local cache.
func (s *Service) Show(ctx context.Context, id string) (api.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return api.Report{}, failure.Validation("report id is required")
	}
	if rep, ok := s.cached(ctx, id); ok {
		return rep, nil
	}

	rep, err := s.api.ReportDetail(ctx, id)
	if err != nil {
		return api.Report{}, err
	}
	s.save(ctx, id, rep)
	return rep, nil
}

// History lists completed sessions, newest first as the service orders them.
func (s *Service) History(ctx context.Context) ([]api.ReportSummary, error) {
	return s.api.ReportHistory(ctx)
}

// Profile fetches the account and, when withHistory is set, its history.
func (s *Service) Profile(ctx context.Context, withHistory bool) (api.Profile, []api.ReportSummary, error) {
	profile, err := s.api.Profile(ctx)
	if err != nil {
		return api.Profile{}, nil, err
	}
	if !withHistory {
		return profile, nil, nil
	}
	history, err := s.api.ReportHistory(ctx)
	if err != nil {
		return api.Profile{}, nil, err
	}
	return profile, history, nil
}

// Abandon discards the stored session without generating a report.
func (s *Service) Abandon(ctx context.Context) (string, error) {
	id, _, err := s.session.Get(ctx, store.KeySessionID)
	if err != nil {
		return "", fmt.Errorf("read session id: %w", err)
	}
	if err := s.session.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear session: %w", err)
	}
	return id, nil
}

func (s *Service) cached(ctx context.Context, id string) (api.Report, bool) {
	if s.cache == nil {
		return api.Report{}, false
	}
	rep, ok, err := s.cache.LoadReport(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache read failed", "session_id", id, "error", err)
		return api.Report{}, false
	}
	return rep, ok
}

func (s *Service) save(ctx context.Context, id string, rep api.Report) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveReport(ctx, id, rep); err != nil {
		s.logger.WarnContext(ctx, "report cache write failed", "session_id", id, "error", err)
	}
}
