package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"streamshare/internal/domain"
	"streamshare/internal/infra/logging"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var kindStatus = []struct {
	kind   error
	code   string
	status int
}{
	{domain.ErrNotFound, "not_found", http.StatusNotFound},
	{domain.ErrInsufficientCapacity, "insufficient_capacity", http.StatusConflict},
	{domain.ErrInvalidState, "invalid_state", http.StatusConflict},
	{domain.ErrConcurrencyConflict, "concurrency_conflict", http.StatusConflict},
	{domain.ErrAlreadyExists, "already_exists", http.StatusConflict},
	{domain.ErrInUse, "in_use", http.StatusConflict},
	{domain.ErrValidation, "validation_failed", http.StatusUnprocessableEntity},
	{domain.ErrConversion, "conversion_failed", http.StatusUnprocessableEntity},
	{domain.ErrInvalidArgument, "invalid_argument", http.StatusBadRequest},
}

// statusFor maps an error to its HTTP status and response body.
func statusFor(err error) (int, errorBody) {
	for _, k := range kindStatus {
		if !errors.Is(err, k.kind) {
			continue
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return k.status, errorBody{Code: de.Code, Message: de.Msg, Entity: de.Entity}
		}
		return k.status, errorBody{Code: k.code, Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"}
}

func writeError(w http.ResponseWriter, r *http.Request, log *zerolog.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		l := logging.With(r.Context(), log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: msg})
}

// decode reads a JSON body, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
