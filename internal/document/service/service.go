package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/document/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Service defines the document and comment operations used by the handler layer and by
// the in-process (offline) annotation client.
type Service interface {
	ListDocuments(ctx context.Context) ([]*annotation.Document, error)
	GetDocument(ctx context.Context, id string) (*annotation.Document, error)
	CreateDocument(ctx context.Context, d *annotation.Document) (*annotation.Document, error)

	ListComments(ctx context.Context, documentID string) ([]*annotation.Comment, error)
	CreateComment(ctx context.Context, req annotation.CommentRequest, author annotation.User) (*annotation.Comment, error)
	ResolveComment(ctx context.Context, documentID, commentID string) (*annotation.Comment, error)
}

// New returns a Service over the given repositories.
func New(docs repository.DocumentRepository, comments repository.CommentRepository) Service {
	return &service{docs: docs, comments: comments}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	repo := repository.NewMemoryRepo()
	return New(repo.Documents(), repo.Comments())
}

// NewMongoService returns a Service backed by the "documents" and "comments" collections
// of db. Caller owns the client.
func NewMongoService(ctx context.Context, db *mongo.Database) (Service, error) {
	docs, err := repository.NewMongoDocumentRepo(ctx, db.Collection("documents"))
	if err != nil {
		return nil, fmt.Errorf("documents collection: %w", err)
	}
	comments, err := repository.NewMongoCommentRepo(ctx, db.Collection("comments"))
	if err != nil {
		return nil, fmt.Errorf("comments collection: %w", err)
	}
	return New(docs, comments), nil
}

type service struct {
	docs     repository.DocumentRepository
	comments repository.CommentRepository
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *service) ListDocuments(ctx context.Context) ([]*annotation.Document, error) {
	return s.docs.List(ctx)
}

func (s *service) GetDocument(ctx context.Context, id string) (*annotation.Document, error) {
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (s *service) CreateDocument(ctx context.Context, d *annotation.Document) (*annotation.Document, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, &annotation.ValidationError{Field: "title", Reason: "is required"}
	}
	if d.Status == "" {
		d.Status = annotation.StatusPending
	}
	if !d.Status.Valid() {
		return nil, &annotation.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", d.Status)}
	}
	if _, err := s.docs.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("document %q: %w", d.ID, ErrConflict)
		}
		return nil, err
	}
	return d, nil
}

func (s *service) ListComments(ctx context.Context, documentID string) ([]*annotation.Comment, error) {
	if _, err := s.docs.Get(ctx, documentID); err != nil {
		return nil, notFound(err)
	}
	return s.comments.ListByDocument(ctx, documentID)
}

func (s *service) CreateComment(ctx context.Context, req annotation.CommentRequest, author annotation.User) (*annotation.Comment, error) {
	if err := annotation.ValidateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.docs.Get(ctx, req.DocumentID); err != nil {
		return nil, notFound(err)
	}
	if author.ID == "" {
		author = annotation.User{ID: req.AuthorID}
	}
	c := &annotation.Comment{
		ID:         uuid.NewString(),
		DocumentID: req.DocumentID,
		Comment:    req.Comment,
		Author:     author,
		// comments always start open; resolving goes through ResolveComment
		IsResolved: false,
	}
	if req.Marker != nil {
		c.Marker = &annotation.Marker{
			ID:         uuid.NewString(),
			PageNumber: req.Marker.PageNumber,
			Position:   req.Marker.Position,
		}
	}
	if _, err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveComment is idempotent: resolving a resolved comment returns it unchanged.
func (s *service) ResolveComment(ctx context.Context, documentID, commentID string) (*annotation.Comment, error) {
	c, err := s.comments.MarkResolved(ctx, documentID, commentID)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}
