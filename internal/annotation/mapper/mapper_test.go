package mapper

import (
	"encoding/json"
	"testing"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/stretchr/testify/require"
)

func TestToCreateRequest_OmitsMarker(t *testing.T) {
	req := ToCreateRequest("doc-1", "General remark", nil, "")
	require.False(t, req.IsResolved)
	require.Nil(t, req.Marker)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	_, hasMarker := m["marker"]
	require.False(t, hasMarker, "marker must be absent, not null")
	_, hasAuthor := m["authorId"]
	require.False(t, hasAuthor)
	require.Equal(t, false, m["isResolved"])
	require.Equal(t, "doc-1", m["documentId"])
	require.Equal(t, "General remark", m["comment"])
}

func TestToCreateRequest_WithMarker(t *testing.T) {
	mk := &annotation.MarkerRequest{PageNumber: 3, Position: annotation.Position{X: 0.5, Y: 0.2}}
	req := ToCreateRequest("doc-1", "Needs review", mk, "u-1")
	mk.PageNumber = 7 // caller mutation must not leak into the request
	require.Equal(t, 3, req.Marker.PageNumber)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	require.JSONEq(t, `{"documentId":"doc-1","comment":"Needs review","authorId":"u-1","isResolved":false,
		"marker":{"pageNumber":3,"position":{"x":0.5,"y":0.2}}}`, string(b))
}

func TestFromResponse(t *testing.T) {
	body := []byte(`{"data":{"id":"c-9","documentId":"doc-1","comment":"Needs review",
		"marker":{"id":"m-1","pageNumber":3,"position":{"x":0.5,"y":0.2}},"isResolved":false,
		"author":{"id":"u-1","name":"John Smith"},"createdAt":"2025-05-01T10:00:00Z"}}`)
	c, err := FromResponse(body)
	require.NoError(t, err)
	require.Equal(t, "c-9", c.ID)
	require.True(t, c.OnPage(3))
	require.Equal(t, "John Smith", c.Author.Name)
	require.False(t, c.Pending)
}

func TestFromResponse_MappingErrors(t *testing.T) {
	for name, body := range map[string]string{
		"no data":    `{"status":"ok"}`,
		"null data":  `{"data":null}`,
		"not json":   `<html>`,
		"wrong type": `{"data":"c-9"}`,
		"no id":      `{"data":{"documentId":"doc-1"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromResponse([]byte(body))
			require.ErrorIs(t, err, annotation.ErrMapping)
		})
	}
}

func TestFromListResponse(t *testing.T) {
	list, err := FromListResponse([]byte(`{"data":[]}`))
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = FromListResponse([]byte(`{"data":[{"id":"a","documentId":"d"},{"id":"b","documentId":"d","marker":null}]}`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.False(t, list[1].HasMarker())

	_, err = FromListResponse([]byte(`{}`))
	require.ErrorIs(t, err, annotation.ErrMapping)
}

func TestWrapRoundTrip(t *testing.T) {
	doc := annotation.Document{ID: "doc-1", Title: "Spec", Status: annotation.StatusPending}
	b, err := json.Marshal(Wrap(doc))
	require.NoError(t, err)
	got, err := DecodeEnvelope[annotation.Document](b)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
	require.Equal(t, annotation.StatusPending, got.Status)
}
