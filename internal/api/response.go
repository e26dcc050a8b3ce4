package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// envelope is the uniform response shape: exactly one of data or error is
// set.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func badRequest(w http.ResponseWriter, message string, details ...string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: &apiError{
		Code: "bad_request", Message: message, Details: details,
	}})
}

func notFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, envelope{Error: &apiError{
		Code: "not_found", Message: message,
	}})
}

func conflict(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusConflict, envelope{Error: &apiError{
		Code: "conflict", Message: message,
	}})
}

func unauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, envelope{Error: &apiError{
		Code: "unauthorized", Message: message,
	}})
}

func tooManyRequests(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, envelope{Error: &apiError{
		Code: "rate_limited", Message: "rate limit exceeded, slow down",
	}})
}

func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, envelope{Error: &apiError{
		Code: "internal_error", Message: "something went wrong",
	}})
}
