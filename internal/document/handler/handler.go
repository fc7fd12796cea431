package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/annotation/mapper"
	"github.com/pdfmarker/pdfmarker/internal/document/service"
	"github.com/pdfmarker/pdfmarker/internal/sessions"
	"github.com/pdfmarker/pdfmarker/internal/storage"
	"github.com/pdfmarker/pdfmarker/internal/users"
	"github.com/pdfmarker/pdfmarker/pkg/logger"
	"github.com/pdfmarker/pdfmarker/pkg/metrics"
	"github.com/pdfmarker/pdfmarker/pkg/middleware"
)

// FileStore keeps the PDF file behind a document. Implemented by storage.MinIOStorage.
type FileStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type Handler struct {
	svc        service.Service
	users      *users.Service
	files      FileStore
	presignTTL time.Duration
	denylist   sessions.Denylist
	revokeTTL  time.Duration
}

type Option func(*Handler)

// WithUsers upserts the caller from verified claims so comments carry a stored author.
func WithUsers(u *users.Service) Option {
	return func(h *Handler) { h.users = u }
}

// WithFiles enables the document file routes.
func WithFiles(fs FileStore, presignTTL time.Duration) Option {
	return func(h *Handler) {
		h.files = fs
		h.presignTTL = presignTTL
	}
}

// WithDenylist enables POST /auth/logout. fallbackTTL is used for tokens without exp.
func WithDenylist(d sessions.Denylist, fallbackTTL time.Duration) Option {
	return func(h *Handler) {
		h.denylist = d
		h.revokeTTL = fallbackTTL
	}
}

func New(svc service.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, presignTTL: 15 * time.Minute, revokeTTL: 15 * time.Minute}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterDocumentRoutes mounts the document and comment API on r. Authentication is
// applied by the caller on r (see middleware.AuthMiddleware).
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service, opts ...Option) *Handler {
	h := New(svc, opts...)
	h.Register(r)
	return h
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/documents", h.listDocuments)
	r.POST("/documents", h.createDocument)
	r.GET("/documents/:id", h.getDocument)
	r.GET("/documents/:id/file", h.getFile)
	r.PUT("/documents/:id/file", h.uploadFile)

	r.GET("/documents/:id/comments", h.listComments)
	r.POST("/documents/:id/comments", h.createComment)
	r.PATCH("/documents/:id/comments/:commentId/resolve", h.resolveComment)

	if h.denylist != nil {
		r.POST("/auth/logout", h.logout)
	}
}

func (h *Handler) listDocuments(c *gin.Context) {
	list, err := h.svc.ListDocuments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.Wrap(list))
}

func (h *Handler) createDocument(c *gin.Context) {
	var req struct {
		ID       string                    `json:"id"`
		Title    string                    `json:"title"`
		Content  string                    `json:"content"`
		Filename string                    `json:"filename"`
		Status   annotation.DocumentStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d := &annotation.Document{ID: req.ID, Title: req.Title, Content: req.Content, Filename: req.Filename, Status: req.Status}
	if _, err := h.svc.CreateDocument(c.Request.Context(), d); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.Wrap(d))
}

func (h *Handler) getDocument(c *gin.Context) {
	d, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.Wrap(d))
}

func (h *Handler) getFile(c *gin.Context) {
	if h.files == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "file storage not configured"})
		return
	}
	d, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	u, err := h.files.PresignedURL(c.Request.Context(), storage.ObjectKey(d.ID, d.Filename), h.presignTTL)
	if err != nil {
		logger.Warnf("presign %s: %v", d.ID, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, u)
}

func (h *Handler) uploadFile(c *gin.Context) {
	if h.files == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "file storage not configured"})
		return
	}
	d, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ct := c.ContentType()
	if ct == "" {
		ct = "application/pdf"
	}
	key := storage.ObjectKey(d.ID, d.Filename)
	if err := h.files.UploadFile(c.Request.Context(), key, c.Request.Body, c.Request.ContentLength, ct); err != nil {
		logger.Errorf("upload %s: %v", key, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (h *Handler) listComments(c *gin.Context) {
	list, err := h.svc.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		countOp("list", err)
		writeError(c, err)
		return
	}
	countOp("list", nil)
	c.JSON(http.StatusOK, mapper.Wrap(list))
}

func (h *Handler) createComment(c *gin.Context) {
	var req annotation.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		countOp("create", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docID := c.Param("id")
	if req.DocumentID == "" {
		req.DocumentID = docID
	}
	if req.DocumentID != docID {
		countOp("create", errBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": "documentId does not match path"})
		return
	}
	out, err := h.svc.CreateComment(c.Request.Context(), req, h.author(c))
	countOp("create", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.Wrap(out))
}

func (h *Handler) resolveComment(c *gin.Context) {
	out, err := h.svc.ResolveComment(c.Request.Context(), c.Param("id"), c.Param("commentId"))
	countOp("resolve", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.Wrap(out))
}

func (h *Handler) logout(c *gin.Context) {
	v, ok := c.Get(middleware.TokenKey)
	token, _ := v.(string)
	if !ok || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	ttl := h.revokeTTL
	if exp, err := sessions.TokenExpiry(token); err == nil {
		ttl = time.Until(exp)
	}
	if ttl > 0 {
		err := h.denylist.Revoke(c.Request.Context(), token, ttl)
		if errors.Is(err, sessions.ErrDenylistDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "logout unavailable: token revocation is not configured"})
			return
		}
		if err != nil {
			logger.Errorf("revoke token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// author resolves the comment author from verified claims. Anonymous callers get a
// zero User and the service falls back to the request's authorId.
func (h *Handler) author(c *gin.Context) annotation.User {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return annotation.User{}
	}
	if h.users != nil {
		u, err := h.users.UpsertFromClaims(c.Request.Context(), claims)
		if err != nil {
			logger.Warnf("upsert user from claims: %v", err)
		} else if u != nil {
			return u.Author()
		}
	}
	str := func(k string) string {
		s, _ := claims[k].(string)
		return s
	}
	name := str("name")
	if name == "" {
		name = str("preferred_username")
	}
	return annotation.User{ID: str("sub"), Name: name, Email: str("email"), Role: str("role")}
}

var errBadRequest = errors.New("bad request")

func countOp(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, annotation.ErrValidation), errors.Is(err, errBadRequest):
		outcome = "invalid"
	case errors.Is(err, service.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.CommentOps.WithLabelValues(op, outcome).Inc()
}

func writeError(c *gin.Context, err error) {
	var verr *annotation.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
