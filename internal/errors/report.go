// Package errors provides the structured error reports of the engine.
// A Report carries a stable code and a phase, so the front-end (and
// tooling parsing its JSON form) can tell a parse problem from a build
// or load problem without string matching. Only errors wrapped with
// Wrap carry a Report; other errors are returned as plain errors.
package errors

import (
	"encoding/json"
	"errors"
)

// Report is the canonical structured error type.
type Report struct {
	Schema  string         `json:"schema"` // Always "crepl.error/v1"
	Code    string         `json:"code"`   // Error code (BLD001, LNK001, ...)
	Phase   string         `json:"phase"`  // "parse", "emit", "build", "load", "session"
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// ReportError wraps a Report as an error so it survives errors.As
// unwrapping across package boundaries.
type ReportError struct {
	Rep   *Report
	cause error
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *ReportError) Unwrap() error { return e.cause }

// AsReport extracts a Report from an error chain.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// New builds a Report with the given code, phase and message.
func New(code, phase, message string) *Report {
	return &Report{
		Schema:  "crepl.error/v1",
		Code:    code,
		Phase:   phase,
		Message: message,
	}
}

// Wrap turns an underlying error into a coded ReportError.
func Wrap(code, phase string, err error) error {
	if err == nil {
		return nil
	}
	r := New(code, phase, err.Error())
	return &ReportError{Rep: r, cause: err}
}

// ToJSON renders a Report deterministically.
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error
	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
