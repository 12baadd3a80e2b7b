package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEndpointMisconfigured is wrapped by errors for a 404 on a collection
// path: the endpoint or kind slug is wrong, the item is not missing.
var ErrEndpointMisconfigured = errors.New("resource endpoint not found, check the configured endpoint")

// Class groups failures by where they happened.
type Class int

const (
	ClassNetwork Class = iota // no response received
	ClassClient               // 4xx
	ClassServer               // 5xx
)

func (c Class) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassClient:
		return "client"
	case ClassServer:
		return "server"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Error is a failed request against the inventory API.
type Error struct {
	Class  Class
	Status int
	// Msg is the server supplied message, if any.
	Msg string
	// Fields holds per-field messages from a validation response.
	Fields map[string]string
	Err    error
}

// Message returns the most specific human-readable description.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	switch e.Class {
	case ClassNetwork:
		return "cannot connect to server"
	case ClassServer:
		return "server error"
	}
	switch e.Status {
	case http.StatusUnauthorized:
		return "invalid credentials"
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "already exists"
	}
	if text := http.StatusText(e.Status); text != "" {
		return strings.ToLower(text)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *Error) Error() string { return e.Message() }

func (e *Error) Unwrap() error { return e.Err }

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *Error {
	return &Error{Class: ClassNetwork, Err: err}
}

// ParseError builds an Error from a non-2xx response. The message is taken
// from the body's "message", then "error", then "title" key. 5xx bodies are
// never surfaced since they may carry internals.
func ParseError(status int, body []byte) *Error {
	e := &Error{Class: ClassClient, Status: status}
	if status >= http.StatusInternalServerError {
		e.Class = ClassServer
		return e
	}

	var payload struct {
		Message string            `json:"message"`
		Error   string            `json:"error"`
		Title   string            `json:"title"`
		Errors  map[string]string `json:"errors"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		for _, m := range []string{payload.Message, payload.Error, payload.Title} {
			if m = strings.TrimSpace(m); m != "" {
				e.Msg = m
				break
			}
		}
		if len(payload.Errors) > 0 {
			e.Fields = payload.Errors
		}
	}
	return e
}

// IsAmbiguous reports whether err leaves the outcome of a mutation unknown:
// the request may or may not have been applied.
func IsAmbiguous(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return true
	}
	return re.Class != ClassClient
}
