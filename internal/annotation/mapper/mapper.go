// Package mapper translates between annotation entities and the wire contract of the
// document-comment API. Every response body is wrapped in a {"data": ...} envelope.
package mapper

import (
	"bytes"
	"encoding/json"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
)

// Envelope is the standard response wrapper.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// Wrap puts v in an envelope.
func Wrap[T any](v T) Envelope[T] {
	return Envelope[T]{Data: v}
}

// ToCreateRequest builds the outbound create payload. A nil marker is left out of the
// encoded body entirely and isResolved always starts false.
func ToCreateRequest(documentID, body string, marker *annotation.MarkerRequest, authorID string) annotation.CommentRequest {
	req := annotation.CommentRequest{
		DocumentID: documentID,
		Comment:    body,
		AuthorID:   authorID,
		IsResolved: false,
	}
	if marker != nil {
		m := *marker
		req.Marker = &m
	}
	return req
}

// DecodeEnvelope unwraps body into T. A missing or null data field is a MappingError.
func DecodeEnvelope[T any](body []byte) (T, error) {
	var zero T
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return zero, annotation.NewMappingError("malformed envelope", err)
	}
	if len(raw.Data) == 0 || bytes.Equal(bytes.TrimSpace(raw.Data), []byte("null")) {
		return zero, annotation.NewMappingError("envelope has no data", nil)
	}
	var out T
	if err := json.Unmarshal(raw.Data, &out); err != nil {
		return zero, annotation.NewMappingError("unexpected data shape", err)
	}
	return out, nil
}

// FromResponse unwraps a single comment.
func FromResponse(body []byte) (annotation.Comment, error) {
	c, err := DecodeEnvelope[annotation.Comment](body)
	if err != nil {
		return annotation.Comment{}, err
	}
	if c.ID == "" || c.DocumentID == "" {
		return annotation.Comment{}, annotation.NewMappingError("comment without id or documentId", nil)
	}
	return c, nil
}

// FromListResponse unwraps a comment list; an empty array is valid.
func FromListResponse(body []byte) ([]annotation.Comment, error) {
	list, err := DecodeEnvelope[[]annotation.Comment](body)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if c.ID == "" {
			return nil, annotation.NewMappingError("comment without id", nil)
		}
	}
	return list, nil
}
