package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/handlers"
	"golang.org/x/crypto/bcrypt"
)

// newTestMux builds the same mux as main.go, backed by an in-memory DB.
// It returns both the mux (for serving requests) and the DB (for pre-seeding).
func newTestMux(t *testing.T) (http.Handler, *db.DB) {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	h := &handlers.Handler{DB: d, BcryptCost: bcrypt.MinCost}
	return handlers.NewMux(h), d
}

// jsonReq builds an unauthenticated JSON request.
func jsonReq(method, path string, body []byte) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// authReq builds a request with the Bearer token already attached.
func authReq(token, method, path string, body []byte) *http.Request {
	r := jsonReq(method, path, body)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// serve is a small helper that runs a request through the mux and returns the recorder.
func serve(mux http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

// decodeBody unmarshals a recorder's body into v.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, w.Body.String())
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// loginToken registers a fresh admin and returns a valid access token.
func loginToken(t *testing.T, mux http.Handler) string {
	t.Helper()
	reg := mustJSON(t, map[string]string{
		"username": "admin", "email": "admin@example.com",
		"password": "hunter22!", "confirmPassword": "hunter22!",
	})
	if w := serve(mux, jsonReq(http.MethodPost, "/auth/register", reg)); w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	login := mustJSON(t, map[string]string{"username": "admin", "password": "hunter22!"})
	w := serve(mux, jsonReq(http.MethodPost, "/auth/login", login))
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decodeBody(t, w, &resp)
	return resp["token"].(string)
}

// createItem POSTs fields to /api/v1/{kind} and returns the decoded item.
func createItem(t *testing.T, mux http.Handler, token, kind string, fields map[string]any) map[string]any {
	t.Helper()
	w := serve(mux, authReq(token, http.MethodPost, "/api/v1/"+kind, mustJSON(t, fields)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s: %d %s", kind, w.Code, w.Body.String())
	}
	var out map[string]any
	decodeBody(t, w, &out)
	return out
}

// --- Health ---

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

// --- Auth guard on protected routes ---

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	mux, _ := newTestMux(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/kinds"},
		{http.MethodPost, "/api/v1/brands"},
		{http.MethodGet, "/api/v1/brands"},
		{http.MethodGet, "/api/v1/brands/some-id"},
		{http.MethodPut, "/api/v1/brands/some-id"},
		{http.MethodDelete, "/api/v1/brands/some-id"},
		{http.MethodPost, "/auth/logout"},
	}

	for _, rt := range routes {
		t.Run(fmt.Sprintf("%s %s", rt.method, rt.path), func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			// deliberately no Authorization header
			w := serve(mux, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 without auth, got %d", w.Code)
			}
		})
	}
}

// --- Kinds ---

func TestListKinds(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	w := serve(mux, authReq(token, http.MethodGet, "/api/v1/kinds", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var kinds []map[string]any
	decodeBody(t, w, &kinds)
	if len(kinds) != 13 {
		t.Errorf("kinds: got %d, want 13", len(kinds))
	}
}

func TestUnknownKind(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	w := serve(mux, authReq(token, http.MethodGet, "/api/v1/toasters", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

// --- CreateItem ---

func TestCreateItem_Valid(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	got := createItem(t, mux, token, "processors", map[string]any{
		"name":  "Ryzen 7 5800X",
		"brand": "AMD",
		"cores": 8,
		"speed": 3.8,
	})

	if got["id"] == "" || got["id"] == nil {
		t.Error("id should be non-empty")
	}
	if got["name"] != "Ryzen 7 5800X" {
		t.Errorf("name: got %v", got["name"])
	}
	if got["cores"] != "8" {
		t.Errorf("cores: got %v, want \"8\"", got["cores"])
	}
	if got["speed"] != "3.8" {
		t.Errorf("speed: got %v, want \"3.8\"", got["speed"])
	}
	if ref, _ := got["referenceId"].(string); !strings.HasPrefix(ref, "CPU-") {
		t.Errorf("referenceId: got %q, want CPU- prefix", ref)
	}
	if got["created_at"] == nil || got["updated_at"] == nil {
		t.Error("timestamps should be set")
	}
}

func TestCreateItem_KeepsClientReferenceID(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	got := createItem(t, mux, token, "brands", map[string]any{"name": "Acer", "referenceId": "BRD-1718000000000"})
	if got["referenceId"] != "BRD-1718000000000" {
		t.Errorf("referenceId: got %v", got["referenceId"])
	}
}

func TestCreateItem_ValidationErrors(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	tests := []struct {
		name    string
		kind    string
		payload map[string]any
	}{
		{"missing name", "brands", map[string]any{"description": "laptops"}},
		{"blank name", "brands", map[string]any{"name": "   "}},
		{"missing size", "ram-sizes", map[string]any{"name": "16GB"}},
		{"missing asset tag", "inventory", map[string]any{"serial": "SN1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, authReq(token, http.MethodPost, "/api/v1/"+tt.kind, mustJSON(t, tt.payload)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400\nbody: %s", w.Code, w.Body.String())
			}
			var resp map[string]string
			decodeBody(t, w, &resp)
			if resp["error"] == "" {
				t.Error("expected non-empty error field")
			}
		})
	}
}

func TestCreateItem_DuplicateNameConflict(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	createItem(t, mux, token, "brands", map[string]any{"name": "Acer"})
	w := serve(mux, authReq(token, http.MethodPost, "/api/v1/brands", mustJSON(t, map[string]any{"name": "ACER"})))
	if w.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", w.Code)
	}
	var resp map[string]string
	decodeBody(t, w, &resp)
	if !strings.Contains(resp["error"], "already exists") {
		t.Errorf("error: got %q", resp["error"])
	}
}

func TestCreateItem_InvalidJSON(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	w := serve(mux, authReq(token, http.MethodPost, "/api/v1/brands", []byte("not-json")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestCreateItem_BodyTooLarge(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	big := `{"name":"` + strings.Repeat("x", 70*1024) + `"}`
	w := serve(mux, authReq(token, http.MethodPost, "/api/v1/brands", []byte(big)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", w.Code)
	}
}

// --- ListItems ---

func TestListItems_Empty(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	w := serve(mux, authReq(token, http.MethodGet, "/api/v1/brands", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
	var items []map[string]any
	decodeBody(t, w, &items)
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty array, got %v", items)
	}
}

func TestListItems_ScopedToKind(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)

	for i := range 3 {
		createItem(t, mux, token, "brands", map[string]any{"name": fmt.Sprintf("brand%d", i)})
	}
	createItem(t, mux, token, "models", map[string]any{"name": "Latitude", "brand": "brand0"})

	tests := []struct {
		kind string
		want int
	}{
		{"brands", 3},
		{"models", 1},
		{"processors", 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			w := serve(mux, authReq(token, http.MethodGet, "/api/v1/"+tt.kind, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d", w.Code)
			}
			var items []map[string]any
			decodeBody(t, w, &items)
			if len(items) != tt.want {
				t.Errorf("got %d items, want %d", len(items), tt.want)
			}
		})
	}
}

// --- GetItem ---

func TestGetItem(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	created := createItem(t, mux, token, "os-installed", map[string]any{"name": "Windows 11", "version": "23H2"})

	w := serve(mux, authReq(token, http.MethodGet, "/api/v1/os-installed/"+created["id"].(string), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var got map[string]any
	decodeBody(t, w, &got)
	if got["version"] != "23H2" {
		t.Errorf("version: got %v", got["version"])
	}
}

func TestGetItem_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	w := serve(mux, authReq(token, http.MethodGet, "/api/v1/brands/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

// --- UpdateItem ---

func TestUpdateItem(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	created := createItem(t, mux, token, "brands", map[string]any{"name": "HP", "referenceId": "BRD-1"})
	id := created["id"].(string)

	w := serve(mux, authReq(token, http.MethodPut, "/api/v1/brands/"+id,
		mustJSON(t, map[string]any{"name": "Hewlett-Packard", "description": "printers", "referenceId": "BRD-other"})))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	var got map[string]any
	decodeBody(t, w, &got)
	if got["name"] != "Hewlett-Packard" || got["description"] != "printers" {
		t.Errorf("unexpected fields: %v", got)
	}
	if got["referenceId"] != "BRD-1" {
		t.Errorf("referenceId must be immutable, got %v", got["referenceId"])
	}
	if got["created_at"] != created["created_at"] {
		t.Errorf("created_at changed: %v -> %v", created["created_at"], got["created_at"])
	}
}

func TestUpdateItem_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	w := serve(mux, authReq(token, http.MethodPut, "/api/v1/brands/ghost", mustJSON(t, map[string]any{"name": "x"})))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestUpdateItem_ConflictAndValidation(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	createItem(t, mux, token, "brands", map[string]any{"name": "Dell"})
	hp := createItem(t, mux, token, "brands", map[string]any{"name": "HP"})
	path := "/api/v1/brands/" + hp["id"].(string)

	tests := []struct {
		name       string
		body       []byte
		wantStatus int
	}{
		{"rename onto existing", mustJSON(t, map[string]any{"name": "dell"}), http.StatusConflict},
		{"missing name", mustJSON(t, map[string]any{"description": "x"}), http.StatusBadRequest},
		{"invalid JSON", []byte("{"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, authReq(token, http.MethodPut, path, tt.body))
			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d\nbody: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

// --- DeleteItem ---

func TestDeleteItem(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	created := createItem(t, mux, token, "brands", map[string]any{"name": "Acer"})
	path := "/api/v1/brands/" + created["id"].(string)

	if w := serve(mux, authReq(token, http.MethodDelete, path, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", w.Code)
	}
	if w := serve(mux, authReq(token, http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
		t.Errorf("after delete: got %d, want 404", w.Code)
	}
	if w := serve(mux, authReq(token, http.MethodDelete, path, nil)); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
}

// --- Content types ---

func TestErrorResponseContentType(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	w := serve(mux, authReq(token, http.MethodGet, "/api/v1/brands/missing", nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
}

func TestCreateItem_UTF8Fields(t *testing.T) {
	mux, _ := newTestMux(t)
	token := loginToken(t, mux)
	got := createItem(t, mux, token, "inventory", map[string]any{
		"asset_tag": "ÄÖÜ-001", "location": "Büro 3 — Regal 🖥", "assigned_to": "José",
	})
	if got["location"] != "Büro 3 — Regal 🖥" {
		t.Errorf("location round trip: got %v", got["location"])
	}
}
