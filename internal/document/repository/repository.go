package repository

import (
	"context"
	"errors"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// DocumentRepository persists the documents comments are attached to.
type DocumentRepository interface {
	Create(ctx context.Context, doc *annotation.Document) (string, error)
	Get(ctx context.Context, id string) (*annotation.Document, error)
	List(ctx context.Context) ([]*annotation.Document, error)
}

// CommentRepository persists comments. List results are in creation order.
type CommentRepository interface {
	Create(ctx context.Context, c *annotation.Comment) (string, error)
	Get(ctx context.Context, documentID, id string) (*annotation.Comment, error)
	ListByDocument(ctx context.Context, documentID string) ([]*annotation.Comment, error)
	MarkResolved(ctx context.Context, documentID, id string) (*annotation.Comment, error)
}
