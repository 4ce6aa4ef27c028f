package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/postfold/postfold/internal/blog/domain/content"
	blogservice "github.com/postfold/postfold/internal/blog/service"
	"github.com/postfold/postfold/internal/blog/storage"
	apperrors "github.com/postfold/postfold/internal/platform/errors"
)

const maxRequestBody = 1 << 20

// Handler serves the blog HTTP API.
type Handler struct {
	service *blogservice.Service
}

// NewHandler creates a Handler.
func NewHandler(service *blogservice.Service) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	return &Handler{service: service}, nil
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeContent(w, r)
	if !ok {
		return
	}
	post, err := h.service.CreatePost(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(r.PathValue("postID"))
	post, err := h.service.GetPost(r.Context(), postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(r.PathValue("postID"))
	body, ok := decodeContent(w, r)
	if !ok {
		return
	}
	post, err := h.service.UpdatePost(r.Context(), postID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(r.PathValue("postID"))
	if err := h.service.DeletePost(r.Context(), postID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pageSize := 0
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "pageSize must be a non-negative integer"))
			return
		}
		pageSize = parsed
	}
	pageToken := strings.TrimSpace(query.Get("pageToken"))
	author := strings.TrimSpace(query.Get("author"))

	var page blogservice.PostPage
	var err error
	if author != "" {
		page, err = h.service.ListPostsByAuthor(r.Context(), author, pageSize, pageToken)
	} else {
		page, err = h.service.ListPosts(r.Context(), pageSize, pageToken)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleLive streams post changes as server-sent events until the client
// disconnects.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeUnavailable, "streaming is not supported"))
		return
	}

	events, err := h.service.Watch(r.Context(), r.URL.Query().Get("author"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			log.Printf("httpapi: marshal watch event: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func decodeContent(w http.ResponseWriter, r *http.Request) (content.Content, bool) {
	var body content.Content
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err))
		return content.Content{}, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("httpapi: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	// Storage sentinels can surface from list queries without a coded wrapper.
	if code == apperrors.CodeUnknown && errors.Is(err, storage.ErrNotFound) {
		code = apperrors.CodeNotFound
	}

	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, code.HTTPStatus(), errorResponse{Error: errorBody{
		Code:    string(code),
		Message: message,
	}})
}
