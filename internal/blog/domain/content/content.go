// Package content defines the post content value object shared by the write
// and read paths.
package content

import (
	"strings"

	apperrors "github.com/postfold/postfold/internal/platform/errors"
)

// Content holds the author-supplied fields of a post.
type Content struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// Normalize trims surrounding whitespace from every field.
func (c Content) Normalize() Content {
	return Content{
		Title:  strings.TrimSpace(c.Title),
		Body:   strings.TrimSpace(c.Body),
		Author: strings.TrimSpace(c.Author),
	}
}

// Validate checks that all fields are present.
// Used on the create path, where a post must be fully specified.
func (c Content) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return apperrors.New(apperrors.CodeContentTitleEmpty, "content title is required")
	}
	if strings.TrimSpace(c.Body) == "" {
		return apperrors.New(apperrors.CodeContentBodyEmpty, "content body is required")
	}
	if strings.TrimSpace(c.Author) == "" {
		return apperrors.New(apperrors.CodeContentAuthorEmpty, "content author is required")
	}
	return nil
}
