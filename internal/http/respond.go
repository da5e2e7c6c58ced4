package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lifedash/internal/log"
	"lifedash/internal/records"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

// inputError is a request the client must fix: malformed JSON, a bad
// amount or date. It maps to 422 (400 for unparseable bodies).
type inputError struct {
	status int
	msg    string
}

func (e *inputError) Error() string { return e.msg }

func invalidInput(format string, args ...any) error {
	return &inputError{status: http.StatusUnprocessableEntity, msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes; anything unrecognized is
// logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var in *inputError
	switch {
	case errors.As(err, &in):
		writeJSON(w, in.status, errorBody{Error: in.msg})
	case errors.Is(err, records.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, records.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorBody{Error: "already exists"})
	case errors.Is(err, records.ErrInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: validationMessage(err)})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// validationMessage strips the "collection: invalid record: " prefix.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, records.ErrInvalid.Error()+": "); i >= 0 {
		return msg[i+len(records.ErrInvalid.Error())+2:]
	}
	return msg
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &inputError{status: http.StatusBadRequest, msg: "empty request body"}
		}
		return &inputError{status: http.StatusBadRequest, msg: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return &inputError{status: http.StatusBadRequest, msg: "request body must hold a single JSON object"}
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
