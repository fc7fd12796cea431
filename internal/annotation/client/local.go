package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/document/service"
)

// Local serves Remote and Documents in-process from a document service, for offline use.
// Failures are reported as the HTTP API would report them.
type Local struct {
	svc service.Service
}

func NewLocal(svc service.Service) *Local {
	return &Local{svc: svc}
}

func (l *Local) FetchComments(ctx context.Context, documentID string) ([]annotation.Comment, error) {
	list, err := l.svc.ListComments(ctx, documentID)
	if err != nil {
		return nil, localError(err)
	}
	out := make([]annotation.Comment, 0, len(list))
	for _, c := range list {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (l *Local) CreateComment(ctx context.Context, req annotation.CommentRequest) (annotation.Comment, error) {
	c, err := l.svc.CreateComment(ctx, req, annotation.User{})
	if err != nil {
		return annotation.Comment{}, localError(err)
	}
	return c.Clone(), nil
}

func (l *Local) ResolveComment(ctx context.Context, documentID, commentID string) (annotation.Comment, error) {
	c, err := l.svc.ResolveComment(ctx, documentID, commentID)
	if err != nil {
		return annotation.Comment{}, localError(err)
	}
	return c.Clone(), nil
}

func (l *Local) FetchDocuments(ctx context.Context) ([]annotation.Document, error) {
	list, err := l.svc.ListDocuments(ctx)
	if err != nil {
		return nil, localError(err)
	}
	out := make([]annotation.Document, 0, len(list))
	for _, d := range list {
		out = append(out, *d)
	}
	return out, nil
}

func (l *Local) FetchDocument(ctx context.Context, id string) (annotation.Document, error) {
	d, err := l.svc.GetDocument(ctx, id)
	if err != nil {
		return annotation.Document{}, localError(err)
	}
	return *d, nil
}

func localError(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, annotation.ErrValidation):
		status = http.StatusBadRequest
	}
	return annotation.NewRemoteError(status, http.StatusText(status), err)
}
