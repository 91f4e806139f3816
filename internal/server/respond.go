package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	frontpage "github.com/eugener/frontpage/internal"
)

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(status int, msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = errorType(status)
	return e
}

func errorType(status int) string {
	switch {
	case status == http.StatusConflict:
		return "state_error"
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status >= 500:
		return "upstream_error"
	default:
		return "invalid_request_error"
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, frontpage.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, frontpage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, frontpage.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, frontpage.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, frontpage.ErrInstallFailed), errors.Is(err, frontpage.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	writeJSON(w, status, errorResponse(status, err.Error()))
}

// jsonCT is a pre-allocated header value slice; direct map assignment skips
// the []string{v} alloc that Header.Set makes.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
