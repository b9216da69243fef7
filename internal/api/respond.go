// Package api provides the shared response envelope and JSON helpers used
// by every handler.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the uniform response body: {success, message?, data?, errors?}.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// OK writes a success envelope with the given payload.
func OK(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// OKMessage writes a success envelope with a message and optional payload.
func OKMessage(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope with a single message.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

// ValidationError writes a 400 envelope carrying field-level errors.
func ValidationError(w http.ResponseWriter, errs []string) {
	write(w, http.StatusBadRequest, Envelope{
		Success: false,
		Message: "validation failed",
		Errors:  errs,
	})
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// ErrBodyTooLarge mirrors http.MaxBytesReader's failure for DecodeJSON
// callers that want to distinguish it.
var ErrBodyTooLarge = errors.New("request body too large")

// DecodeJSON decodes a request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return err
	}
	return nil
}
