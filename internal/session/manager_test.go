package session

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/observability"
	"service-discovery/internal/models"
	"service-discovery/internal/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingProcessor struct {
	requests []orchestrator.QueryRequest
	convos   []models.ConversationContext
	err      error
}

func (p *recordingProcessor) ProcessQuery(_ context.Context, req orchestrator.QueryRequest, convo models.ConversationContext) (*models.QueryResponse, models.ConversationContext, error) {
	p.requests = append(p.requests, req)
	p.convos = append(p.convos, convo)
	if p.err != nil {
		return nil, convo, p.err
	}
	next := convo.Clone()
	next.Turns = append(next.Turns, models.Turn{Index: len(convo.Turns) + 1, Query: models.ParsedQuery{Text: req.Text}})
	return &models.QueryResponse{RequestID: "req", SessionID: req.SessionID, ResponseText: "ok"}, next, nil
}

func intPtr(v int) *int { return &v }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(t *testing.T, proc Processor, cfg Config) (*Manager, *MemoryStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = c.now
	m := NewManager(store, proc, cfg, logger.NewTestLogger(t))
	m.now = c.now
	m.newID = func() string { return "s-new" }
	return m, store, c
}

// ==========================
// Session lifecycle
// ==========================

func TestManager_CreateGetDelete(t *testing.T) {
	m, _, _ := newTestManager(t, &recordingProcessor{}, Config{TTL: time.Hour})
	ctx := context.Background()

	s, err := m.Create(ctx, models.CitizenProfile{Region: "TN"})
	require.NoError(t, err)
	assert.Equal(t, "s-new", s.ID)
	assert.Equal(t, "s-new", s.Conversation.SessionID)

	got, err := m.Get(ctx, "s-new")
	require.NoError(t, err)
	assert.Equal(t, "TN", got.Profile.Region)

	require.NoError(t, m.Delete(ctx, "s-new"))
	_, err = m.Get(ctx, "s-new")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
	assert.True(t, apperrors.HasCode(m.Delete(ctx, "s-new"), apperrors.ErrCodeSessionNotFound))
}

func TestManager_SessionExpires(t *testing.T) {
	m, _, c := newTestManager(t, &recordingProcessor{}, Config{TTL: 30 * time.Minute})
	ctx := context.Background()

	_, err := m.Create(ctx, models.CitizenProfile{})
	require.NoError(t, err)

	c.t = c.t.Add(31 * time.Minute)
	_, err = m.Get(ctx, "s-new")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

// ==========================
// ProcessQuery
// ==========================

func TestManager_ProcessQuery_PersistsConversation(t *testing.T) {
	proc := &recordingProcessor{}
	m, _, _ := newTestManager(t, proc, Config{TTL: time.Hour})
	ctx := context.Background()

	resp, err := m.ProcessQuery(ctx, "diabetes help", "s-1", &models.CitizenProfile{Region: "TN"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ResponseText)

	_, err = m.ProcessQuery(ctx, "what about my mother", "s-1", &models.CitizenProfile{Age: intPtr(62)})
	require.NoError(t, err)

	require.Len(t, proc.convos, 2)
	assert.Empty(t, proc.convos[0].Turns)
	assert.Len(t, proc.convos[1].Turns, 1)
	assert.Equal(t, "TN", proc.requests[1].Profile.Region)
	assert.Equal(t, 62, *proc.requests[1].Profile.Age)

	s, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, s.Conversation.Turns, 2)
}

func TestManager_WithTurnMetrics(t *testing.T) {
	obs := observability.NewNoop()
	m := NewManager(NewMemoryStore(), &recordingProcessor{}, Config{TTL: time.Hour}, logger.NewTestLogger(t),
		WithTurnMetrics(obs, "memory"))

	assert.Same(t, obs, m.obs)
	assert.Equal(t, "memory", m.storeName)

	resp, err := m.ProcessQuery(context.Background(), "pension", "s-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ResponseText)
}

func TestManager_ProcessQuery_ErrorLeavesSessionUntouched(t *testing.T) {
	proc := &recordingProcessor{err: apperrors.NewInvalidRequestError("query text is empty")}
	m, _, _ := newTestManager(t, proc, Config{})

	_, err := m.ProcessQuery(context.Background(), "  ", "s-2", nil)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
	_, err = m.Get(context.Background(), "s-2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

func TestManager_ProcessQuery_MissingSessionID(t *testing.T) {
	m, _, _ := newTestManager(t, &recordingProcessor{}, Config{})

	_, err := m.ProcessQuery(context.Background(), "help", " ", nil)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestManager_ProcessQuery_Busy(t *testing.T) {
	proc := &recordingProcessor{}
	m, store, _ := newTestManager(t, proc, Config{LockTTL: time.Minute})

	unlock, err := store.Lock(context.Background(), "s-3", time.Minute)
	require.NoError(t, err)

	_, err = m.ProcessQuery(context.Background(), "help", "s-3", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionBusy))
	assert.Empty(t, proc.requests)

	unlock()
	_, err = m.ProcessQuery(context.Background(), "help", "s-3", nil)
	assert.NoError(t, err)
}

func TestManager_ProcessQuery_StoreFailureStillAnswers(t *testing.T) {
	proc := &recordingProcessor{}
	store := &failingPutStore{MemoryStore: NewMemoryStore()}
	m := NewManager(store, proc, Config{}, logger.NewTestLogger(t))

	resp, err := m.ProcessQuery(context.Background(), "help", "s-4", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ResponseText)
}

type failingPutStore struct {
	*MemoryStore
}

func (f *failingPutStore) Put(context.Context, *models.Session, time.Duration) error {
	return apperrors.NewSessionStoreError("put", errors.New("disk full"))
}

// ==========================
// MemoryStore locks
// ==========================

func TestMemoryStore_LockExpires(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = c.now
	ctx := context.Background()

	stale, err := store.Lock(ctx, "s", time.Second)
	require.NoError(t, err)

	_, err = store.Lock(ctx, "s", time.Second)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionBusy))

	c.t = c.t.Add(2 * time.Second)
	fresh, err := store.Lock(ctx, "s", time.Second)
	require.NoError(t, err)

	// Releasing the stale lock must not free the lock taken over after it expired.
	stale()
	_, err = store.Lock(ctx, "s", time.Second)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionBusy))
	fresh()
}
