package annotation

import "time"

// DocumentStatus is the review lifecycle state of a document.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "Pending"
	StatusApproved DocumentStatus = "Approved"
	StatusDeclined DocumentStatus = "Declined"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Document is owned by the document service; clients only hold read-only copies.
type Document struct {
	ID        string         `json:"id" bson:"id"`
	Title     string         `json:"title" bson:"title"`
	Content   string         `json:"content,omitempty" bson:"content,omitempty"`
	Filename  string         `json:"filename" bson:"filename"`
	Status    DocumentStatus `json:"status" bson:"status"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// User is the author reference attached to comments.
type User struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Role  string `json:"role,omitempty" bson:"role,omitempty"`
}

// Position is a point on a rendered page. The unit is decided by the renderer.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Marker anchors a comment to a page. It has no lifecycle of its own.
type Marker struct {
	ID         string   `json:"id,omitempty" bson:"id,omitempty"`
	PageNumber int      `json:"pageNumber" bson:"pageNumber"`
	Position   Position `json:"position" bson:"position"`
}

// Comment is a free-text annotation on a document, optionally anchored by a Marker.
// A nil Marker means the comment applies to the whole document.
type Comment struct {
	ID         string    `json:"id" bson:"id"`
	DocumentID string    `json:"documentId" bson:"documentId"`
	Comment    string    `json:"comment" bson:"comment"`
	Marker     *Marker   `json:"marker" bson:"marker,omitempty"`
	Author     User      `json:"author" bson:"author"`
	IsResolved bool      `json:"isResolved" bson:"isResolved"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`

	// Pending is set on optimistic entries that the remote has not confirmed yet.
	Pending bool `json:"-" bson:"-"`
}

// HasMarker reports whether the comment is anchored to a page position.
func (c *Comment) HasMarker() bool {
	return c.Marker != nil
}

// OnPage reports whether the comment is anchored to the given page.
func (c *Comment) OnPage(page int) bool {
	return c.Marker != nil && c.Marker.PageNumber == page
}

// Clone returns a copy that shares no pointers with c.
func (c Comment) Clone() Comment {
	if c.Marker != nil {
		m := *c.Marker
		c.Marker = &m
	}
	return c
}

// MarkerRequest is the outbound marker shape; server assigns the marker id.
type MarkerRequest struct {
	PageNumber int      `json:"pageNumber" validate:"gte=1"`
	Position   Position `json:"position"`
}

// CommentRequest is the create-comment payload. Marker is omitted, not nulled, when absent.
type CommentRequest struct {
	DocumentID string         `json:"documentId" validate:"required"`
	Comment    string         `json:"comment" validate:"required"`
	AuthorID   string         `json:"authorId,omitempty"`
	IsResolved bool           `json:"isResolved"`
	Marker     *MarkerRequest `json:"marker,omitempty" validate:"omitempty"`
}
