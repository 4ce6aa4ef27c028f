// Package httpapi exposes the blog service over JSON HTTP, with a
// server-sent-events stream for live updates.
package httpapi

import "net/http"

// RegisterRoutes mounts the blog API onto mux.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	if mux == nil || h == nil {
		return
	}
	mux.HandleFunc(http.MethodGet+" /healthz", h.handleHealth)
	mux.HandleFunc(http.MethodPost+" /api/posts", h.handleCreate)
	mux.HandleFunc(http.MethodGet+" /api/posts", h.handleList)
	mux.HandleFunc(http.MethodGet+" /api/posts/live", h.handleLive)
	mux.HandleFunc(http.MethodGet+" /api/posts/{postID}", h.handleGet)
	mux.HandleFunc(http.MethodPut+" /api/posts/{postID}", h.handleUpdate)
	mux.HandleFunc(http.MethodDelete+" /api/posts/{postID}", h.handleDelete)
}
