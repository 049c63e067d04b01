package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/brugmanjoost/drumbeat/internal/message"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// Result codes carried in the response envelope.
const (
	ResultOK               = "ok"
	ResultAccessDenied     = "error-access-denied"
	ResultNotFound         = "error-not-found"
	ResultBadRequest       = "error-bad-request"
	ResultAlreadyScheduled = "error-already-scheduled"
	ResultNotPending       = "error-not-pending"
	ResultInternal         = "error-internal"
)

// envelope is the body of every message endpoint response.
type envelope struct {
	Result string `json:"result"`
	Data   any    `json:"data,omitempty"`
}

func writeStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeOK writes 200 with data.
func writeOK(w http.ResponseWriter, data any) {
	writeStatus(w, http.StatusOK, envelope{Result: ResultOK, Data: data})
}

func writeResult(w http.ResponseWriter, status int, result string) {
	writeStatus(w, status, envelope{Result: result})
}

// errorResult maps an engine or gate error to an HTTP status and result code.
// Anything unrecognised, corrupt state included, is internal.
func errorResult(err error) (int, string) {
	switch {
	case errors.Is(err, message.ErrAccessDenied):
		return http.StatusForbidden, ResultAccessDenied
	case errors.Is(err, message.ErrNotFound):
		return http.StatusNotFound, ResultNotFound
	case errors.Is(err, message.ErrAlreadyScheduled):
		return http.StatusBadRequest, ResultAlreadyScheduled
	case errors.Is(err, message.ErrNotPending):
		return http.StatusBadRequest, ResultNotPending
	case errors.Is(err, message.ErrBadRequest):
		return http.StatusBadRequest, ResultBadRequest
	default:
		return http.StatusInternalServerError, ResultInternal
	}
}

// writeError writes the envelope for err. Internal failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, logger logpkg.Logger, err error) {
	status, result := errorResult(err)
	if status == http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error("request failed",
			logpkg.Str("method", r.Method),
			logpkg.Str("path", r.URL.Path),
			logpkg.Err(err))
	}
	writeResult(w, status, result)
}

// parseID parses a positive message id.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON body of at most limit bytes into v. An empty body
// leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
