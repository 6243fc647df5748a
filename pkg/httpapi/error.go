package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the body of every JSON error answered by the service.
// Meta carries request_id and path when known, and field.<name> entries for
// rejected request fields.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Error is an error response under construction.
type Error struct {
	Status int
	ErrorEnvelope
}

func NewError(status int, code, message string) *Error {
	return &Error{Status: status, ErrorEnvelope: ErrorEnvelope{Code: code, Message: message}}
}

// WithMeta sets key when value is not empty.
func (e *Error) WithMeta(key, value string) *Error {
	if value == "" {
		return e
	}
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
	return e
}

func (e *Error) WithRequestID(requestID string) *Error {
	return e.WithMeta("request_id", requestID)
}

func (e *Error) WithPath(r *http.Request) *Error {
	return e.WithMeta("path", r.URL.Path)
}

func (e *Error) WithFields(fields map[string]string) *Error {
	for name, msg := range fields {
		e.WithMeta("field."+name, msg)
	}
	return e
}

func (e *Error) Write(w http.ResponseWriter) error {
	return WriteJSON(w, e.Status, &e.ErrorEnvelope)
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}
