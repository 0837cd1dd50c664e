// Package httpapi exposes the session manager over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/validation"
	"service-discovery/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

// Sessions is the application surface served by the API.
type Sessions interface {
	Create(ctx context.Context, profile models.CitizenProfile) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	ProcessQuery(ctx context.Context, rawText, sessionID string, profile *models.CitizenProfile) (*models.QueryResponse, error)
}

type Handler struct {
	sessions Sessions
	logger   logger.Logger
}

func NewHandler(sessions Sessions, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Handler{
		sessions: sessions,
		logger:   log.WithFields(map[string]interface{}{"component": "httpapi"}),
	}
}

// Register mounts the session and query routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.handleCreateSession)
		r.Get("/sessions/{id}", h.handleGetSession)
		r.Delete("/sessions/{id}", h.handleDeleteSession)
		r.Post("/query", h.handleQuery)
	})
}

type createSessionRequest struct {
	Profile models.CitizenProfile `json:"profile"`
}

type sessionCreatedResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, apperrors.NewInvalidRequestError(fmt.Sprintf("decode body: %v", err)))
			return
		}
	}

	s, err := h.sessions.Create(r.Context(), req.Profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionCreatedResponse{
		SessionID: s.ID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	})
}

type turnView struct {
	Index      int                `json:"index"`
	Text       string             `json:"text"`
	Category   models.Category    `json:"category,omitempty"`
	Outcome    models.TurnOutcome `json:"outcome"`
	ServiceIDs []string           `json:"serviceIds,omitempty"`
	At         time.Time          `json:"at"`
}

type sessionView struct {
	SessionID     string                   `json:"sessionId"`
	Profile       models.CitizenProfile    `json:"profile"`
	KnownEntities map[string]models.Entity `json:"knownEntities,omitempty"`
	LastIntent    *models.Intent           `json:"lastIntent,omitempty"`
	Turns         []turnView               `json:"turns"`
	CreatedAt     time.Time                `json:"createdAt"`
	LastActivity  time.Time                `json:"lastActivity"`
	ExpiresAt     time.Time                `json:"expiresAt,omitempty"`
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	view := sessionView{
		SessionID:     s.ID,
		Profile:       s.Profile,
		KnownEntities: s.Conversation.KnownEntities,
		LastIntent:    s.Conversation.LastIntent,
		Turns:         make([]turnView, 0, len(s.Conversation.Turns)),
		CreatedAt:     s.CreatedAt,
		LastActivity:  s.LastActivity,
		ExpiresAt:     s.ExpiresAt,
	}
	for _, t := range s.Conversation.Turns {
		view.Turns = append(view.Turns, turnView{
			Index:      t.Index,
			Text:       t.Query.Text,
			Category:   t.Enriched.Intent.Category,
			Outcome:    t.Summary.Outcome,
			ServiceIDs: t.Summary.ServiceIDs,
			At:         t.At,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryRequest struct {
	SessionID string                 `json:"sessionId"`
	Text      string                 `json:"text"`
	Profile   *models.CitizenProfile `json:"profile,omitempty"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if result := validation.ValidateQueryRequest(body); !result.Valid {
		writeError(w, apperrors.NewInvalidRequestError(result.Error()))
		return
	}

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperrors.NewInvalidRequestError(fmt.Sprintf("decode body: %v", err)))
		return
	}

	resp, err := h.sessions.ProcessQuery(r.Context(), req.Text, req.SessionID, req.Profile)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest) {
			h.logger.Error("Query failed", map[string]interface{}{
				"sessionId": req.SessionID,
				"error":     err.Error(),
			})
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("read body: %v", err))
	}
	if len(body) > maxBodyBytes {
		return nil, apperrors.NewInvalidRequestError("request body too large")
	}
	return body, nil
}
