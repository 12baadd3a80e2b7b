package handlers

import (
	"net/http"

	"github.com/tphummel/lab_inventory/internal/metrics"
	"github.com/tphummel/lab_inventory/internal/middleware"
)

// NewMux builds the service routes. Auth endpoints, health, metrics and docs
// are public; everything under /api/v1 requires a Bearer token.
func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern, fn))
	}
	protected := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern, middleware.Auth(h, fn)))
	}

	// Health check, metrics, docs: no auth
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /openapi.yaml", OpenAPISpec)
	mux.HandleFunc("GET /docs", Docs)

	// Authentication
	public("POST /auth/login", h.Login)
	public("POST /auth/register", h.Register)
	public("POST /auth/refresh", h.Refresh)
	protected("POST /auth/logout", h.Logout)

	// Resource CRUD: Bearer token auth required
	protected("GET /api/v1/kinds", h.ListKinds)
	protected("POST /api/v1/{kind}", h.CreateItem)
	protected("GET /api/v1/{kind}", h.ListItems)
	protected("GET /api/v1/{kind}/{id}", h.GetItem)
	protected("PUT /api/v1/{kind}/{id}", h.UpdateItem)
	protected("DELETE /api/v1/{kind}/{id}", h.DeleteItem)

	return mux
}
