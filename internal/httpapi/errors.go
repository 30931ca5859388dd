package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/san-kum/trainsim/internal/app"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/storage"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error  string              `json:"error"`
	Fields []params.FieldError `json:"fields,omitempty"`
}

var errBadRequest = errors.New("malformed request body")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, dynamo.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dynamo.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, dynamo.ErrNotAvailable),
		errors.Is(err, dynamo.ErrNoResults),
		errors.Is(err, dynamo.ErrNotConfigured),
		errors.Is(err, storage.ErrRunNotFound),
		errors.Is(err, app.ErrUnknownPreset):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := ErrorBody{Error: err.Error()}
	var ve *params.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
