package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/service"
)

// CommandIDHeader carries a client-chosen id that makes a command safe to
// retry.
const CommandIDHeader = "X-Command-ID"

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps a service error to an HTTP status and client message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSessionID):
		return http.StatusBadRequest, "invalid session id"
	case errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusNotFound, "session not logged in"
	case errors.Is(err, domain.ErrUnknownItem):
		return http.StatusNotFound, "unknown item"
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, "dock busy, retry"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeServiceError logs unexpected failures and writes the mapped response.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, msg)
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

func parseItemID(r *http.Request) (domain.ItemID, bool) {
	n, err := strconv.Atoi(r.PathValue("item"))
	if err != nil {
		return 0, false
	}
	return domain.ItemID(n), true
}

// commandContext attaches the request's command id, if any.
func commandContext(r *http.Request) *http.Request {
	if id := r.Header.Get(CommandIDHeader); id != "" {
		return r.WithContext(service.WithCommandID(r.Context(), id))
	}
	return r
}
