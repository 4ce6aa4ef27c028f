package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/postfold/postfold/internal/blog/engine"
	"github.com/postfold/postfold/internal/blog/projection"
	blogservice "github.com/postfold/postfold/internal/blog/service"
	"github.com/postfold/postfold/internal/blog/storage/sqlite"
	"github.com/postfold/postfold/internal/blog/tag"
)

type testServer struct {
	server  *httptest.Server
	events  *sqlite.Store
	views   *sqlite.Store
	applier *projection.Applier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	events, err := sqlite.OpenEvents(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("open events store: %v", err)
	}
	views, err := sqlite.OpenViews(filepath.Join(dir, "views.db"))
	if err != nil {
		t.Fatalf("open views store: %v", err)
	}

	hub := blogservice.NewHub()
	eng, err := engine.New(engine.Config{Events: events, Snapshots: events, Notifier: hub})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	service, err := blogservice.NewService(blogservice.Config{Engine: eng, Posts: views, Hub: hub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	applier, err := projection.NewApplier(views)
	if err != nil {
		t.Fatalf("new applier: %v", err)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		if err := events.Close(); err != nil {
			t.Fatalf("close events store: %v", err)
		}
		if err := views.Close(); err != nil {
			t.Fatalf("close views store: %v", err)
		}
	})
	return &testServer{server: server, events: events, views: views, applier: applier}
}

func (ts *testServer) project(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, tg := range tag.All() {
		position, err := ts.views.GetCursor(ctx, string(tg))
		if err != nil {
			t.Fatalf("get cursor: %v", err)
		}
		for {
			batch, err := ts.events.ListEventsByTag(ctx, string(tg), position, 100)
			if err != nil {
				t.Fatalf("list events: %v", err)
			}
			if len(batch) == 0 {
				break
			}
			for _, evt := range batch {
				if err := ts.applier.Apply(ctx, evt); err != nil {
					t.Fatalf("apply: %v", err)
				}
				position = evt.Position
			}
		}
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodePost(t *testing.T, resp *http.Response) blogservice.Post {
	t.Helper()
	var post blogservice.Post
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	return post
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Code
}

func createBody(title, body, author string) map[string]string {
	return map[string]string{"title": title, "body": body, "author": author}
}

func TestCreateAndGetPost(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPost, "/api/posts", createBody("First", "Hello", "alice"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	created := decodePost(t, resp)
	if created.ID == "" || created.Title != "First" {
		t.Fatalf("unexpected post %+v", created)
	}

	resp = ts.request(t, http.MethodGet, "/api/posts/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got := decodePost(t, resp)
	if got.ID != created.ID || got.Body != "Hello" {
		t.Fatalf("unexpected post %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPost, "/api/posts", createBody("", "Hello", "alice"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, resp); code != "CONTENT_TITLE_EMPTY" {
		t.Fatalf("error code = %q", code)
	}
}

func TestCreateMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/posts", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestGetMissingPost(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/posts/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, resp); code != "NOT_FOUND" {
		t.Fatalf("error code = %q", code)
	}
}

func TestUpdatePost(t *testing.T) {
	ts := newTestServer(t)

	created := decodePost(t, ts.request(t, http.MethodPost, "/api/posts", createBody("First", "Hello", "alice")))

	resp := ts.request(t, http.MethodPut, "/api/posts/"+created.ID, map[string]string{
		"title": "Second", "body": "Changed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	updated := decodePost(t, resp)
	if updated.Title != "Second" || updated.Author != "alice" {
		t.Fatalf("unexpected post %+v", updated)
	}

	resp = ts.request(t, http.MethodPut, "/api/posts/missing", createBody("T", "B", "a"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update missing status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, resp); code != "POST_NOT_CREATED" {
		t.Fatalf("error code = %q", code)
	}
}

func TestDeletePost(t *testing.T) {
	ts := newTestServer(t)

	created := decodePost(t, ts.request(t, http.MethodPost, "/api/posts", createBody("First", "Hello", "alice")))

	resp := ts.request(t, http.MethodDelete, "/api/posts/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = ts.request(t, http.MethodGet, "/api/posts/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestListPosts(t *testing.T) {
	ts := newTestServer(t)

	for _, author := range []string{"alice", "bob", "alice"} {
		resp := ts.request(t, http.MethodPost, "/api/posts", createBody("Post", "Body", author))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d", resp.StatusCode)
		}
	}
	ts.project(t)

	resp := ts.request(t, http.MethodGet, "/api/posts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var page blogservice.PostPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(page.Posts))
	}

	resp = ts.request(t, http.MethodGet, "/api/posts?author=alice", nil)
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Posts) != 2 {
		t.Fatalf("expected 2 posts by alice, got %d", len(page.Posts))
	}

	resp = ts.request(t, http.MethodGet, "/api/posts?pageSize=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad pageSize status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestLiveStream(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.server.URL+"/api/posts/live", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}

	created := decodePost(t, ts.request(t, http.MethodPost, "/api/posts", createBody("First", "Hello", "alice")))

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			eventLine = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if eventLine != "post.created" {
		t.Fatalf("event = %q, want %q", eventLine, "post.created")
	}
	var evt blogservice.WatchEvent
	if err := json.Unmarshal([]byte(dataLine), &evt); err != nil {
		t.Fatalf("decode watch event: %v", err)
	}
	if evt.PostID != created.ID {
		t.Fatalf("watch event for %q, want %q", evt.PostID, created.ID)
	}
}
