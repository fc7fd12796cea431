// Package client talks to the document-comment API. Each call performs exactly one
// request and never retries; callers decide what a failure means.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/annotation/mapper"
	"github.com/pdfmarker/pdfmarker/internal/credentials"
	"github.com/pdfmarker/pdfmarker/pkg/logger"
)

// Remote is the comment capability the annotation store depends on.
type Remote interface {
	FetchComments(ctx context.Context, documentID string) ([]annotation.Comment, error)
	CreateComment(ctx context.Context, req annotation.CommentRequest) (annotation.Comment, error)
	ResolveComment(ctx context.Context, documentID, commentID string) (annotation.Comment, error)
}

// Documents is the read-only document capability.
type Documents interface {
	FetchDocuments(ctx context.Context) ([]annotation.Document, error)
	FetchDocument(ctx context.Context, id string) (annotation.Document, error)
}

const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Remote and Documents.
type Client struct {
	base  *url.URL
	http  *http.Client
	creds credentials.Provider
}

// New returns a Client for cfg.BaseURL. A nil provider sends requests unauthenticated.
func New(cfg Config, creds credentials.Provider) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: base URL %q must be absolute", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	if creds == nil {
		creds = credentials.None{}
	}
	return &Client{base: base, http: hc, creds: creds}, nil
}

func (c *Client) FetchComments(ctx context.Context, documentID string) ([]annotation.Comment, error) {
	body, err := c.do(ctx, http.MethodGet, commentsPath(documentID), nil)
	if err != nil {
		return nil, err
	}
	return mapper.FromListResponse(body)
}

func (c *Client) CreateComment(ctx context.Context, req annotation.CommentRequest) (annotation.Comment, error) {
	body, err := c.do(ctx, http.MethodPost, commentsPath(req.DocumentID), req)
	if err != nil {
		return annotation.Comment{}, err
	}
	return mapper.FromResponse(body)
}

func (c *Client) ResolveComment(ctx context.Context, documentID, commentID string) (annotation.Comment, error) {
	p := commentsPath(documentID) + "/" + url.PathEscape(commentID) + "/resolve"
	body, err := c.do(ctx, http.MethodPatch, p, struct{}{})
	if err != nil {
		return annotation.Comment{}, err
	}
	return mapper.FromResponse(body)
}

func (c *Client) FetchDocuments(ctx context.Context) ([]annotation.Document, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/documents", nil)
	if err != nil {
		return nil, err
	}
	return mapper.DecodeEnvelope[[]annotation.Document](body)
}

func (c *Client) FetchDocument(ctx context.Context, id string) (annotation.Document, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return annotation.Document{}, err
	}
	return mapper.DecodeEnvelope[annotation.Document](body)
}

func commentsPath(documentID string) string {
	return "/api/documents/" + url.PathEscape(documentID) + "/comments"
}

// do sends one request and returns the response body of a 2xx reply. Every failure is
// a *annotation.RemoteError; Status is 0 when no response was received.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, annotation.NewRemoteError(0, "encode request", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return nil, annotation.NewRemoteError(0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, annotation.NewRemoteError(0, "credentials unavailable", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debugf("%s %s: %v", method, path, err)
		return nil, annotation.NewRemoteError(0, "transport failure", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, annotation.NewRemoteError(resp.StatusCode, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debugf("%s %s: status %d", method, path, resp.StatusCode)
		return nil, annotation.NewRemoteError(resp.StatusCode, http.StatusText(resp.StatusCode), serverError(body))
	}
	return body, nil
}

// serverError extracts the {"error": "..."} detail the API attaches to failures.
func serverError(body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return nil
	}
	return errors.New(e.Error)
}
