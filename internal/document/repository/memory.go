package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfmarker/pdfmarker/internal/annotation"
)

// MemoryRepo is an in-memory document and comment store. It backs unit tests and the
// offline client mode.
type MemoryRepo struct {
	mu       sync.RWMutex
	docs     map[string]*annotation.Document
	docOrder []string
	comments map[string][]*annotation.Comment // by document id, creation order
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:     make(map[string]*annotation.Document),
		comments: make(map[string][]*annotation.Comment),
	}
}

// Documents returns the repo as a DocumentRepository.
func (m *MemoryRepo) Documents() DocumentRepository { return memoryDocs{m} }

// Comments returns the repo as a CommentRepository.
func (m *MemoryRepo) Comments() CommentRepository { return memoryComments{m} }

type memoryDocs struct{ m *MemoryRepo }

func (r memoryDocs) Create(_ context.Context, doc *annotation.Document) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if _, exists := r.m.docs[doc.ID]; exists {
		return "", ErrConflict
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	r.m.docOrder = append(r.m.docOrder, doc.ID)
	cp := *doc
	r.m.docs[doc.ID] = &cp
	return doc.ID, nil
}

func (r memoryDocs) Get(_ context.Context, id string) (*annotation.Document, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if d, ok := r.m.docs[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r memoryDocs) List(_ context.Context) ([]*annotation.Document, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*annotation.Document, 0, len(r.m.docOrder))
	for _, id := range r.m.docOrder {
		cp := *r.m.docs[id]
		out = append(out, &cp)
	}
	return out, nil
}

type memoryComments struct{ m *MemoryRepo }

func (r memoryComments) Create(_ context.Context, c *annotation.Comment) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := c.Clone()
	r.m.comments[c.DocumentID] = append(r.m.comments[c.DocumentID], &cp)
	return c.ID, nil
}

func (r memoryComments) find(documentID, id string) *annotation.Comment {
	for _, c := range r.m.comments[documentID] {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r memoryComments) Get(_ context.Context, documentID, id string) (*annotation.Comment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c := r.find(documentID, id)
	if c == nil {
		return nil, ErrNotFound
	}
	cp := c.Clone()
	return &cp, nil
}

func (r memoryComments) ListByDocument(_ context.Context, documentID string) ([]*annotation.Comment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	src := r.m.comments[documentID]
	out := make([]*annotation.Comment, 0, len(src))
	for _, c := range src {
		cp := c.Clone()
		out = append(out, &cp)
	}
	return out, nil
}

func (r memoryComments) MarkResolved(_ context.Context, documentID, id string) (*annotation.Comment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c := r.find(documentID, id)
	if c == nil {
		return nil, ErrNotFound
	}
	c.IsResolved = true
	cp := c.Clone()
	return &cp, nil
}
