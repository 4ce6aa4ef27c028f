// Package service provides the blog application service.
//
// Writes go through the command engine and read their result from write-side
// state, so a caller always sees its own write. List queries come from the
// projected read model and may trail the journal briefly.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/command"
	"github.com/postfold/postfold/internal/blog/domain/content"
	"github.com/postfold/postfold/internal/blog/domain/post"
	"github.com/postfold/postfold/internal/blog/engine"
	"github.com/postfold/postfold/internal/blog/storage"
	apperrors "github.com/postfold/postfold/internal/platform/errors"
	"github.com/postfold/postfold/internal/platform/id"
)

const (
	defaultListPageSize = 10
	maxListPageSize     = 100
)

// Post is the API-facing view of one post.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostPage is one page of posts.
type PostPage struct {
	Posts         []Post `json:"posts"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// Service exposes the blog operations.
type Service struct {
	engine      *engine.Engine
	posts       storage.PostStore
	hub         *Hub
	idGenerator func() (string, error)
}

// Config configures a Service.
type Config struct {
	Engine *engine.Engine
	Posts  storage.PostStore
	// Hub is optional; without it Watch returns an error.
	Hub *Hub
	// IDGenerator overrides the default random ID source for tests.
	IDGenerator func() (string, error)
}

// NewService creates a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Posts == nil {
		return nil, fmt.Errorf("post store is required")
	}
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Service{
		engine:      cfg.Engine,
		posts:       cfg.Posts,
		hub:         cfg.Hub,
		idGenerator: idGenerator,
	}, nil
}

// CreatePost creates a post with a server-generated ID and returns it.
func (s *Service) CreatePost(ctx context.Context, body content.Content) (Post, error) {
	if s == nil {
		return Post{}, fmt.Errorf("service is not configured")
	}
	postID, err := s.idGenerator()
	if err != nil {
		return Post{}, apperrors.Wrap(apperrors.CodeInternal, "generate post id", err)
	}
	return s.applyContent(ctx, postID, command.TypePostCreate, body)
}

// GetPost returns the current state of one post.
//
// It reads the write side rather than the projection, so a create or update
// is visible immediately regardless of projector lag.
func (s *Service) GetPost(ctx context.Context, postID string) (Post, error) {
	if s == nil {
		return Post{}, fmt.Errorf("service is not configured")
	}
	state, _, err := s.engine.Load(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	if !state.Created {
		return Post{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("post %s not found", postID))
	}
	return toPost(postID, state), nil
}

// UpdatePost replaces a post's content and returns the updated post.
// An empty author keeps the existing one.
func (s *Service) UpdatePost(ctx context.Context, postID string, body content.Content) (Post, error) {
	if s == nil {
		return Post{}, fmt.Errorf("service is not configured")
	}
	return s.applyContent(ctx, postID, command.TypePostUpdate, body)
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	if s == nil {
		return fmt.Errorf("service is not configured")
	}
	_, err := s.engine.Execute(ctx, command.Command{
		PostID: postID,
		Type:   command.TypePostDelete,
	})
	return err
}

// ListPosts returns one page of posts from the read model.
func (s *Service) ListPosts(ctx context.Context, pageSize int, pageToken string) (PostPage, error) {
	if s == nil {
		return PostPage{}, fmt.Errorf("service is not configured")
	}
	page, err := s.posts.ListPosts(ctx, clampPageSize(pageSize), pageToken)
	if err != nil {
		return PostPage{}, err
	}
	return toPostPage(page), nil
}

// ListPostsByAuthor returns one page of posts by one author.
func (s *Service) ListPostsByAuthor(ctx context.Context, author string, pageSize int, pageToken string) (PostPage, error) {
	if s == nil {
		return PostPage{}, fmt.Errorf("service is not configured")
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return PostPage{}, apperrors.New(apperrors.CodeInvalidArgument, "author is required")
	}
	page, err := s.posts.ListPostsByAuthor(ctx, author, clampPageSize(pageSize), pageToken)
	if err != nil {
		return PostPage{}, err
	}
	return toPostPage(page), nil
}

// Watch subscribes to live post changes, optionally restricted to one
// author. The subscription ends when ctx is canceled or the subscriber stops
// keeping up.
func (s *Service) Watch(ctx context.Context, author string) (<-chan WatchEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("service is not configured")
	}
	if s.hub == nil {
		return nil, apperrors.New(apperrors.CodeUnavailable, "live updates are not enabled")
	}
	events := s.hub.Subscribe(ctx)
	if author == "" {
		return events, nil
	}

	filtered := make(chan WatchEvent, subscriberBuffer)
	go func() {
		defer close(filtered)
		for evt := range events {
			if evt.Author != author {
				continue
			}
			select {
			case filtered <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return filtered, nil
}

// applyContent executes one content-carrying command and builds the reply
// from the state the engine returns, so a concurrent writer on the same post
// cannot change the reply between append and read.
func (s *Service) applyContent(ctx context.Context, postID string, cmdType command.Type, body content.Content) (Post, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Post{}, apperrors.Wrap(apperrors.CodeInternal, "marshal command payload", err)
	}
	result, err := s.engine.Execute(ctx, command.Command{
		PostID:      postID,
		Type:        cmdType,
		PayloadJSON: payload,
	})
	if err != nil {
		return Post{}, err
	}
	return toPost(postID, result.State), nil
}

func toPost(postID string, state post.State) Post {
	return Post{
		ID:        postID,
		Title:     state.Content.Title,
		Body:      state.Content.Body,
		Author:    state.Content.Author,
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
	}
}

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultListPageSize
	}
	if pageSize > maxListPageSize {
		return maxListPageSize
	}
	return pageSize
}

func toPostPage(page storage.PostPage) PostPage {
	out := PostPage{
		Posts:         make([]Post, 0, len(page.Posts)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Posts {
		out.Posts = append(out.Posts, Post{
			ID:        record.ID,
			Title:     record.Title,
			Body:      record.Body,
			Author:    record.Author,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return out
}
