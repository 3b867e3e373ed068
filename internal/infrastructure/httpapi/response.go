package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
)

// Response is the standard envelope of every API reply.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeBadRequest    = "BAD_REQUEST"
	codeUnauthorized  = "UNAUTHORIZED"
	codeNotFound      = "NOT_FOUND"
	codeInvalidState  = "INVALID_STATE"
	codeNoPolicy      = "NO_ACTIVE_POLICY"
	codeMisconfigured = "POLICY_MISCONFIGURED"
	codeInternal      = "INTERNAL"
)

func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

func respondError(w http.ResponseWriter, reqID string, status int, code, message string) {
	respondJSON(w, status, reqID, nil, &APIError{Code: code, Message: message})
}

// respondDomainError maps the engine's error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, reqID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, reqID, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		respondError(w, reqID, http.StatusConflict, codeInvalidState, err.Error())
	case errors.Is(err, domain.ErrNoActivePolicy):
		respondError(w, reqID, http.StatusUnprocessableEntity, codeNoPolicy, err.Error())
	case errors.Is(err, domain.ErrPolicyMisconfigured):
		respondError(w, reqID, http.StatusUnprocessableEntity, codeMisconfigured, err.Error())
	default:
		respondError(w, reqID, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *APIError) {
	resp := Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
