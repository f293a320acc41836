package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type statsResponse struct {
	Stats mailbox.StorageStats `json:"stats"`
	Mode  mailbox.Mode         `json:"mode"`
}

type handlers struct {
	api    API
	logger *slog.Logger
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, mode, err := h.api.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: stats, Mode: mode})
}

func (h *handlers) cleanup(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CleanupRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := h.api.Cleanup(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) audit(w http.ResponseWriter, r *http.Request) {
	since, err := ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	runs, err := h.api.History(r.Context(), since)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []mailbox.CleanupResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	report, err := h.api.Report(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) listPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.api.Policies())
}

func (h *handlers) putPolicy(w http.ResponseWriter, r *http.Request) {
	var p mailbox.RetentionPolicy
	if err := decodeJSON(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	category := r.PathValue("category")
	if p.Category == "" {
		p.Category = category
	}
	if p.Category != category {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("body category %q does not match path %q", p.Category, category),
		})
		return
	}

	if err := h.api.UpsertPolicy(p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// writeError maps domain errors to status codes.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// StatusFor returns the HTTP status for an operation error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, mailbox.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, mailbox.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, mailbox.ErrInvalidPolicy), errors.Is(err, lifecycle.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, mailbox.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		var bad *badRequestError
		if errors.As(err, &bad) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequestError{err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// maxSinceDays is the largest day count a time.Duration can hold.
const maxSinceDays = int(math.MaxInt64 / int64(24*time.Hour))

// ParseSince parses an audit window such as "24h", "90m" or "7d". An empty
// string means no window.
func ParseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 || n > maxSinceDays {
			return 0, fmt.Errorf("invalid since %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid since %q", s)
	}
	return d, nil
}
