package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "service-discovery/internal/common/errors"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the error code onto a status. Internal errors never expose details.
func writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.AsStandardError(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	body := errorResponse{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Retryable: stdErr.Retryable,
	}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
	}
	writeJSON(w, status, body)
}
