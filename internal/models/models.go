package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Item is the canonical shape of one inventory record of any kind. Domain
// fields live in Fields keyed by the kind's canonical field names.
type Item struct {
	ID          string
	ReferenceID string
	Fields      map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Get returns the value of a canonical field, or "" when unset.
func (it Item) Get(field string) string {
	if it.Fields == nil {
		return ""
	}
	return it.Fields[field]
}

// Set assigns a canonical field, allocating Fields on first use.
func (it *Item) Set(field, value string) {
	if it.Fields == nil {
		it.Fields = make(map[string]string)
	}
	it.Fields[field] = value
}

// Clone returns a shallow copy whose Fields map can be mutated without
// affecting the original.
func (it Item) Clone() Item {
	out := it
	out.Fields = make(map[string]string, len(it.Fields))
	for k, v := range it.Fields {
		out.Fields[k] = v
	}
	return out
}

// MarshalJSON flattens Fields into the top-level object so the wire shape
// is {"id": ..., "referenceId": ..., "name": ..., "created_at": ...}.
func (it Item) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(it.Fields)+4)
	for k, v := range it.Fields {
		m[k] = v
	}
	m["id"] = it.ID
	if it.ReferenceID != "" {
		m["referenceId"] = it.ReferenceID
	}
	if !it.CreatedAt.IsZero() {
		m["created_at"] = it.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !it.UpdatedAt.IsZero() {
		m["updated_at"] = it.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(m)
}

// NewReferenceID builds the human-readable reference assigned to an item at
// create time, e.g. "BRD-1718000000000".
func NewReferenceID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
}

// FormatValue renders a decoded JSON scalar as a field string. Numbers are
// written without an exponent, nil becomes "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		if !strings.ContainsAny(x.String(), "eE") {
			return x.String()
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// User is a registered administrator.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an issued access/refresh token pair. Only digests of the tokens
// are ever persisted.
type Session struct {
	ID               string
	UserID           string
	AccessDigest     string
	RefreshDigest    string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
}
