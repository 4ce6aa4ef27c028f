package post

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/command"
	"github.com/postfold/postfold/internal/blog/domain/content"
	"github.com/postfold/postfold/internal/blog/domain/event"
	apperrors "github.com/postfold/postfold/internal/platform/errors"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func createdState() State {
	return State{
		Created: true,
		Content: content.Content{Title: "First", Body: "Hello", Author: "alice"},
	}
}

func TestDecideCreate(t *testing.T) {
	cmd := command.Command{
		PostID: "p1",
		Type:   command.TypePostCreate,
		PayloadJSON: mustMarshal(t, content.Content{
			Title: "  First  ", Body: "Hello", Author: "alice",
		}),
	}

	decision := Decide(State{}, cmd, Policy{})
	if !decision.Accepted() {
		t.Fatalf("expected create to be accepted, got %+v", decision.Rejections)
	}
	if len(decision.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(decision.Events))
	}
	if decision.Events[0].Type != string(event.TypePostCreated) {
		t.Fatalf("unexpected event type %q", decision.Events[0].Type)
	}

	var payload event.CreatedPayload
	if err := json.Unmarshal(decision.Events[0].PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal created payload: %v", err)
	}
	if payload.Title != "First" {
		t.Fatalf("expected title trimmed to %q, got %q", "First", payload.Title)
	}
	if payload.Author != "alice" {
		t.Fatalf("unexpected author %q", payload.Author)
	}
}

func TestDecideCreateExisting(t *testing.T) {
	cmd := command.Command{
		PostID: "p1",
		Type:   command.TypePostCreate,
		PayloadJSON: mustMarshal(t, content.Content{
			Title: "Second", Body: "Replaced", Author: "bob",
		}),
	}

	// Default policy overwrites.
	decision := Decide(createdState(), cmd, Policy{})
	if !decision.Accepted() {
		t.Fatalf("expected overwrite create to be accepted, got %+v", decision.Rejections)
	}

	// Strict policy rejects.
	decision = Decide(createdState(), cmd, Policy{StrictCreate: true})
	if decision.Accepted() {
		t.Fatalf("expected strict create to be rejected")
	}
	if decision.Rejections[0].Code != string(apperrors.CodePostAlreadyExists) {
		t.Fatalf("unexpected rejection code %q", decision.Rejections[0].Code)
	}
}

func TestDecideCreateValidation(t *testing.T) {
	cases := []struct {
		name     string
		body     content.Content
		wantCode apperrors.Code
	}{
		{"empty title", content.Content{Body: "b", Author: "a"}, apperrors.CodeContentTitleEmpty},
		{"empty body", content.Content{Title: "t", Author: "a"}, apperrors.CodeContentBodyEmpty},
		{"empty author", content.Content{Title: "t", Body: "b"}, apperrors.CodeContentAuthorEmpty},
		{"whitespace title", content.Content{Title: "   ", Body: "b", Author: "a"}, apperrors.CodeContentTitleEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := command.Command{
				PostID:      "p1",
				Type:        command.TypePostCreate,
				PayloadJSON: mustMarshal(t, tc.body),
			}
			decision := Decide(State{}, cmd, Policy{})
			if decision.Accepted() {
				t.Fatalf("expected rejection")
			}
			if decision.Rejections[0].Code != string(tc.wantCode) {
				t.Fatalf("rejection code = %q, want %q", decision.Rejections[0].Code, tc.wantCode)
			}
		})
	}
}

func TestDecideUpdate(t *testing.T) {
	cmd := command.Command{
		PostID: "p1",
		Type:   command.TypePostUpdate,
		PayloadJSON: mustMarshal(t, content.Content{
			Title: "Second", Body: "Changed",
		}),
	}

	decision := Decide(createdState(), cmd, Policy{})
	if !decision.Accepted() {
		t.Fatalf("expected update to be accepted, got %+v", decision.Rejections)
	}

	var payload event.UpdatedPayload
	if err := json.Unmarshal(decision.Events[0].PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal updated payload: %v", err)
	}
	if payload.Author != "alice" {
		t.Fatalf("expected prior author to be kept, got %q", payload.Author)
	}
	if payload.Title != "Second" {
		t.Fatalf("unexpected title %q", payload.Title)
	}
}

func TestDecideUpdateNotCreated(t *testing.T) {
	cmd := command.Command{
		PostID: "p1",
		Type:   command.TypePostUpdate,
		PayloadJSON: mustMarshal(t, content.Content{
			Title: "Second", Body: "Changed", Author: "bob",
		}),
	}

	decision := Decide(State{}, cmd, Policy{})
	if decision.Accepted() {
		t.Fatalf("expected update of missing post to be rejected")
	}
	if decision.Rejections[0].Code != string(apperrors.CodePostNotCreated) {
		t.Fatalf("unexpected rejection code %q", decision.Rejections[0].Code)
	}
}

func TestDecideDelete(t *testing.T) {
	cmd := command.Command{PostID: "p1", Type: command.TypePostDelete}

	decision := Decide(createdState(), cmd, Policy{})
	if !decision.Accepted() {
		t.Fatalf("expected delete to be accepted, got %+v", decision.Rejections)
	}
	var payload event.DeletedPayload
	if err := json.Unmarshal(decision.Events[0].PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal deleted payload: %v", err)
	}
	if payload.Author != "alice" {
		t.Fatalf("expected deleted payload to carry author, got %q", payload.Author)
	}

	decision = Decide(State{}, cmd, Policy{})
	if decision.Accepted() {
		t.Fatalf("expected delete of missing post to be rejected")
	}
	if decision.Rejections[0].Code != string(apperrors.CodePostNotCreated) {
		t.Fatalf("unexpected rejection code %q", decision.Rejections[0].Code)
	}
}

func TestDecideMalformedPayload(t *testing.T) {
	cmd := command.Command{
		PostID:      "p1",
		Type:        command.TypePostCreate,
		PayloadJSON: []byte("{not json"),
	}
	decision := Decide(State{}, cmd, Policy{})
	if decision.Accepted() {
		t.Fatalf("expected malformed payload to be rejected")
	}
	if decision.Rejections[0].Code != string(apperrors.CodePostCommandInvalid) {
		t.Fatalf("unexpected rejection code %q", decision.Rejections[0].Code)
	}
}

func TestDecideUnknownCommand(t *testing.T) {
	cmd := command.Command{PostID: "p1", Type: command.Type("post.publish")}
	decision := Decide(State{}, cmd, Policy{})
	if decision.Accepted() {
		t.Fatalf("expected unknown command to be rejected")
	}
	if decision.Rejections[0].Code != string(apperrors.CodePostCommandInvalid) {
		t.Fatalf("unexpected rejection code %q", decision.Rejections[0].Code)
	}
}

func TestDecideIsPure(t *testing.T) {
	state := createdState()
	cmd := command.Command{
		PostID: "p1",
		Type:   command.TypePostUpdate,
		PayloadJSON: mustMarshal(t, content.Content{
			Title: "Second", Body: "Changed",
		}),
	}

	first := Decide(state, cmd, Policy{})
	second := Decide(state, cmd, Policy{})
	if string(first.Events[0].PayloadJSON) != string(second.Events[0].PayloadJSON) {
		t.Fatalf("expected identical decisions for identical inputs")
	}
	if state.Content.Title != "First" || state.UpdatedAt != (time.Time{}) {
		t.Fatalf("state mutated by Decide: %+v", state)
	}
}
