package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/models"
)

const maxBodyBytes = 64 * 1024

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	DB      *db.DB
	Version string
	Commit  string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a size-limited JSON body into v and writes the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// kindFromPath resolves the {kind} path segment, writing a 404 when unknown.
func kindFromPath(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	k, ok := models.LookupKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource kind")
		return models.Kind{}, false
	}
	return k, true
}

// itemFromPayload copies the kind's canonical fields out of a decoded JSON
// object. Unknown keys are ignored.
func itemFromPayload(k models.Kind, payload map[string]any) models.Item {
	it := models.Item{Fields: make(map[string]string, len(k.Fields))}
	for _, f := range k.Fields {
		it.Fields[f] = strings.TrimSpace(models.FormatValue(payload[f]))
	}
	if ref, ok := payload["referenceId"]; ok {
		it.ReferenceID = strings.TrimSpace(models.FormatValue(ref))
	}
	return it
}

func missingRequired(k models.Kind, it models.Item) []string {
	var missing []string
	for _, f := range k.Required {
		if it.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Health handles GET /healthz. No auth required.
// Returns 503 if the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
	})
}

type kindInfo struct {
	Slug         string   `json:"slug"`
	Label        string   `json:"label"`
	Prefix       string   `json:"prefix"`
	Fields       []string `json:"fields"`
	NameField    string   `json:"nameField"`
	SearchFields []string `json:"searchFields"`
	Required     []string `json:"required"`
}

// ListKinds handles GET /api/v1/kinds.
func (h *Handler) ListKinds(w http.ResponseWriter, r *http.Request) {
	out := make([]kindInfo, 0, len(models.Kinds))
	for _, k := range models.Kinds {
		out = append(out, kindInfo{
			Slug: k.Slug, Label: k.Label, Prefix: k.Prefix, Fields: k.Fields,
			NameField: k.NameField, SearchFields: k.SearchFields, Required: k.Required,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateItem handles POST /api/v1/{kind}.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromPath(w, r)
	if !ok {
		return
	}
	var payload map[string]any
	if !decodeBody(w, r, &payload) {
		return
	}

	it := itemFromPayload(k, payload)
	if missing := missingRequired(k, it); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(missing, ", ")+" required")
		return
	}

	now := h.now()
	it.ID = uuid.New().String()
	if it.ReferenceID == "" {
		it.ReferenceID = models.NewReferenceID(k.Prefix, now)
	}
	it.CreatedAt = now
	it.UpdatedAt = now

	if err := h.DB.Create(k, &it); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, http.StatusConflict, fmt.Sprintf("%s %q already exists", k.Label, it.Get(k.NameField)))
			return
		}
		slog.Error("create item", "kind", k.Slug, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create "+k.Label)
		return
	}

	writeJSON(w, http.StatusCreated, it)
}

// ListItems handles GET /api/v1/{kind}.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromPath(w, r)
	if !ok {
		return
	}

	items, err := h.DB.List(k)
	if err != nil {
		slog.Error("list items", "kind", k.Slug, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list "+k.Slug)
		return
	}

	if items == nil {
		items = []*models.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem handles GET /api/v1/{kind}/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	it, err := h.DB.GetByID(k, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, k.Label+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get "+k.Label)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// UpdateItem handles PUT /api/v1/{kind}/{id}. The body replaces all fields.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	existing, err := h.DB.GetByID(k, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, k.Label+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get "+k.Label)
		return
	}

	var payload map[string]any
	if !decodeBody(w, r, &payload) {
		return
	}

	it := itemFromPayload(k, payload)
	if missing := missingRequired(k, it); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(missing, ", ")+" required")
		return
	}

	it.ID = id
	it.ReferenceID = existing.ReferenceID
	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = h.now()

	if err := h.DB.Update(k, &it); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, http.StatusConflict, fmt.Sprintf("%s %q already exists", k.Label, it.Get(k.NameField)))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update "+k.Label)
		return
	}

	writeJSON(w, http.StatusOK, it)
}

// DeleteItem handles DELETE /api/v1/{kind}/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	err := h.DB.Delete(k, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, k.Label+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete "+k.Label)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
