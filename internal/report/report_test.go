package report

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/session"
	"github.com/rbright/rehearse/internal/store"
)

type fakeAPI struct {
	report      api.Report
	generateErr error
	detailErr   error
	history     []api.ReportSummary
	profile     api.Profile

	generateCalls atomic.Int32
	detailCalls   atomic.Int32
	historyCalls  atomic.Int32
	lastID        atomic.Value
}

func (f *fakeAPI) GenerateReport(_ context.Context, id string) (api.Report, error) {
	f.generateCalls.Add(1)
	f.lastID.Store(id)
	if f.generateErr != nil {
		return api.Report{}, f.generateErr
	}
	return f.report, nil
}

func (f *fakeAPI) ReportDetail(_ context.Context, id string) (api.Report, error) {
	f.detailCalls.Add(1)
	f.lastID.Store(id)
	if f.detailErr != nil {
		return api.Report{}, f.detailErr
	}
	return f.report, nil
}

func (f *fakeAPI) ReportHistory(context.Context) ([]api.ReportSummary, error) {
	f.historyCalls.Add(1)
	return f.history, nil
}

func (f *fakeAPI) Profile(context.Context) (api.Profile, error) {
	return f.profile, nil
}

func fiveResponses() api.Report {
	score := 8.5
	rep := api.Report{
		TotalQuestions:  5,
		AnswersReceived: 5,
		AccuracyLevel:   "high",
		ConfidenceLevel: "medium",
		Feedback:        "## Summary\n\n- **Clear** structure\n- Add [metrics](https://example.com)",
	}
	for i := 0; i < 5; i++ {
		rep.DetailedResponses = append(rep.DetailedResponses, api.ResponseDetail{
			Question:        "Question " + string(rune('A'+i)),
			CandidateAnswer: "answer",
			Status:          "correct",
			Score:           &score,
			Feedback:        "Good",
		})
	}
	return rep
}

func openDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "rehearse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGenerateCachesReportAndClearsSession(t *testing.T) {
	db := openDB(t)
	kv := db.Scope(store.NamespaceSession)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, store.KeySessionID, "abc123"))
	require.NoError(t, kv.Set(ctx, store.KeyProgress, "5"))

	client := &fakeAPI{report: fiveResponses()}
	svc := NewService(client, kv, db, nil)

	got, err := svc.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc123", got.SessionID)
	require.Len(t, got.Report.DetailedResponses, 5)
	require.Equal(t, "abc123", client.lastID.Load())

	_, ok, err := kv.Get(ctx, store.KeySessionID)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = kv.Get(ctx, store.KeyProgress)
	require.NoError(t, err)
	require.False(t, ok)

	cached, ok, err := db.LoadReport(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, got.Report, cached)
}

func TestGenerateRequiresSession(t *testing.T) {
	client := &fakeAPI{}
	svc := NewService(client, store.NewMemory(nil), nil, nil)

	_, err := svc.Generate(context.Background())
	require.ErrorIs(t, err, session.ErrSessionRequired)
	require.Equal(t, failure.KindValidation, failure.KindOf(err))
	require.Zero(t, client.generateCalls.Load())
}

func TestGenerateKeepsSessionOnFailure(t *testing.T) {
	kv := store.NewMemory(map[string]string{store.KeySessionID: "abc123"})
	client := &fakeAPI{generateErr: failure.ErrTransport}
	svc := NewService(client, kv, nil, nil)

	_, err := svc.Generate(context.Background())
	require.ErrorIs(t, err, failure.ErrTransport)

	v, ok, _ := kv.Get(context.Background(), store.KeySessionID)
	require.True(t, ok)
	require.Equal(t, "abc123", v)
}

func TestGenerateFinalizedServesCachedCopy(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveReport(ctx, "abc123", fiveResponses()))
	kv := store.NewMemory(map[string]string{store.KeySessionID: "abc123"})

	client := &fakeAPI{generateErr: failure.ErrSessionAlreadyFinalized}
	svc := NewService(client, kv, db, nil)

	got, err := svc.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, got.Report.DetailedResponses, 5)
	require.Empty(t, kv.Keys())
}

func TestGenerateFinalizedWithoutCacheFails(t *testing.T) {
	kv := store.NewMemory(map[string]string{store.KeySessionID: "abc123"})
	svc := NewService(&fakeAPI{generateErr: failure.ErrSessionAlreadyFinalized}, kv, nil, nil)

	_, err := svc.Generate(context.Background())
	require.ErrorIs(t, err, failure.ErrSessionAlreadyFinalized)
}

func TestShowPrefersCache(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	client := &fakeAPI{report: fiveResponses()}
	svc := NewService(client, store.NewMemory(nil), db, nil)

	first, err := svc.Show(ctx, " s-1 ")
	require.NoError(t, err)
	second, err := svc.Show(ctx, "s-1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.EqualValues(t, 1, client.detailCalls.Load())
	require.Equal(t, "s-1", client.lastID.Load())
}

func TestShowValidatesAndPropagates(t *testing.T) {
	client := &fakeAPI{detailErr: failure.ErrSessionNotFound}
	svc := NewService(client, store.NewMemory(nil), nil, nil)

	_, err := svc.Show(context.Background(), "  ")
	require.ErrorIs(t, err, failure.ErrValidation)

	_, err = svc.Show(context.Background(), "missing")
	require.ErrorIs(t, err, failure.ErrSessionNotFound)
}

type brokenCache struct{}

func (brokenCache) SaveReport(context.Context, string, api.Report) error {
	return errors.New("disk full")
}

func (brokenCache) LoadReport(context.Context, string) (api.Report, bool, error) {
	return api.Report{}, false, errors.New("locked")
}

func TestCacheFailuresDoNotFailShow(t *testing.T) {
	client := &fakeAPI{report: fiveResponses()}
	svc := NewService(client, store.NewMemory(nil), brokenCache{}, nil)

	rep, err := svc.Show(context.Background(), "s-1")
	require.NoError(t, err)
	require.Equal(t, 5, rep.TotalQuestions)
}

func TestProfileHistoryIsOptional(t *testing.T) {
	client := &fakeAPI{
		profile: api.Profile{User: api.User{Username: "ada"}},
		history: []api.ReportSummary{{SessionID: "s-1"}},
	}
	svc := NewService(client, store.NewMemory(nil), nil, nil)

	_, history, err := svc.Profile(context.Background(), false)
	require.NoError(t, err)
	require.Nil(t, history)
	require.Zero(t, client.historyCalls.Load())

	profile, history, err := svc.Profile(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "ada", profile.User.Username)
	require.Len(t, history, 1)
}

func TestAbandonClearsSession(t *testing.T) {
	kv := store.NewMemory(map[string]string{store.KeySessionID: "abc123", store.KeyTotal: "5"})
	svc := NewService(&fakeAPI{}, kv, nil, nil)

	id, err := svc.Abandon(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", id)
	require.Empty(t, kv.Keys())
}
