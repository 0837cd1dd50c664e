package session

import (
	"context"
	"strings"
	"time"

	"service-discovery/internal/common/config"
	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/observability"
	"service-discovery/internal/models"
	"service-discovery/internal/orchestrator"

	"github.com/google/uuid"
)

// Processor runs one conversation turn.
type Processor interface {
	ProcessQuery(ctx context.Context, req orchestrator.QueryRequest, convo models.ConversationContext) (*models.QueryResponse, models.ConversationContext, error)
}

type Config struct {
	TTL      time.Duration
	LockTTL  time.Duration
	LockWait time.Duration
}

// ConfigFromSessions maps the sessions config section; durations there are milliseconds.
func ConfigFromSessions(c config.SessionConfig) Config {
	return Config{
		TTL:      time.Duration(c.TTL) * time.Millisecond,
		LockTTL:  time.Duration(c.LockTTL) * time.Millisecond,
		LockWait: 2 * time.Second,
	}
}

// Manager is the application entry point: it loads the session, runs the turn under the
// session lock and stores the next conversation context.
type Manager struct {
	store     Store
	processor Processor
	cfg       Config
	logger    logger.Logger
	obs       *observability.Observability
	storeName string
	now       func() time.Time
	newID     func() string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTurnMetrics counts every stored turn under the given store label.
func WithTurnMetrics(obs *observability.Observability, storeName string) Option {
	return func(m *Manager) {
		m.obs = obs
		m.storeName = storeName
	}
}

func NewManager(store Store, processor Processor, cfg Config, log logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	m := &Manager{
		store:     store,
		processor: processor,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "session-manager"}),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context, profile models.CitizenProfile) (*models.Session, error) {
	s := models.NewSession(m.newID(), profile, m.now().UTC(), m.cfg.TTL)
	if err := m.store.Put(ctx, s, m.cfg.TTL); err != nil {
		return nil, err
	}
	m.logger.Info("Session created", map[string]interface{}{"sessionId": s.ID})
	return s, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsExpired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	return s, nil
}

// Delete ends a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("Session ended", map[string]interface{}{"sessionId": id})
	return nil
}

// ProcessQuery runs one turn of sessionID. An unknown session ID starts a new session under
// that ID. Fields set in profile are merged into the stored profile before the turn.
// A failure to store the next context is logged; the response is still returned.
func (m *Manager) ProcessQuery(ctx context.Context, rawText, sessionID string, profile *models.CitizenProfile) (*models.QueryResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.NewInvalidRequestError("sessionId is required")
	}

	unlock, err := m.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := m.Get(ctx, sessionID)
	if apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound) {
		s = models.NewSession(sessionID, models.CitizenProfile{}, m.now().UTC(), m.cfg.TTL)
	} else if err != nil {
		return nil, err
	}
	if profile != nil {
		s.MergeProfile(*profile)
	}

	resp, next, err := m.processor.ProcessQuery(ctx, orchestrator.QueryRequest{
		SessionID: sessionID,
		Text:      rawText,
		Profile:   s.Profile,
	}, s.Conversation)
	if err != nil {
		return nil, err
	}

	s.Conversation = next
	s.UpdateActivity(m.now().UTC(), m.cfg.TTL)
	if err := m.store.Put(ctx, s, m.cfg.TTL); err != nil {
		m.logger.Error("Failed to store session", map[string]interface{}{
			"sessionId": sessionID,
			"requestId": resp.RequestID,
			"error":     err.Error(),
		})
		return resp, nil
	}
	m.obs.RecordTurn(ctx, m.storeName)
	return resp, nil
}

// lock retries a busy lock until LockWait elapses.
func (m *Manager) lock(ctx context.Context, id string) (func(), error) {
	deadline := m.now().Add(m.cfg.LockWait)
	for {
		unlock, err := m.store.Lock(ctx, id, m.cfg.LockTTL)
		if err == nil {
			return unlock, nil
		}
		if !apperrors.HasCode(err, apperrors.ErrCodeSessionBusy) || !m.now().Before(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Ping checks the session store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
