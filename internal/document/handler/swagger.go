package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the document-comment API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>pdfmarker-api Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "pdfmarker-api", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Position": { "type": "object", "properties": { "x": {"type":"number"}, "y": {"type":"number"} } },
      "Marker": { "type": "object", "properties": { "id": {"type":"string"}, "pageNumber": {"type":"integer","minimum":1}, "position": {"$ref":"#/components/schemas/Position"} } },
      "User": { "type": "object", "properties": { "id": {"type":"string"}, "name": {"type":"string"}, "email": {"type":"string"}, "role": {"type":"string"} } },
      "Comment": { "type": "object", "properties": { "id": {"type":"string"}, "documentId": {"type":"string"}, "comment": {"type":"string"}, "marker": {"$ref":"#/components/schemas/Marker"}, "author": {"$ref":"#/components/schemas/User"}, "isResolved": {"type":"boolean"}, "createdAt": {"type":"string","format":"date-time"} } },
      "CommentRequest": { "type": "object", "required": ["comment"], "properties": { "documentId": {"type":"string"}, "comment": {"type":"string"}, "authorId": {"type":"string"}, "isResolved": {"type":"boolean"}, "marker": { "type":"object", "properties": { "pageNumber": {"type":"integer","minimum":1}, "position": {"$ref":"#/components/schemas/Position"} } } } },
      "Document": { "type": "object", "properties": { "id": {"type":"string"}, "title": {"type":"string"}, "content": {"type":"string"}, "filename": {"type":"string"}, "status": {"type":"string","enum":["Pending","Approved","Declined"]}, "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"} } }
    }
  },
  "paths": {
    "/api/documents": {
      "get": { "summary": "List documents", "responses": { "200": { "description": "{ data: Document[] }" } } },
      "post": { "summary": "Create document", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Document"} } } }, "responses": { "201": { "description": "{ data: Document }" }, "400": { "description": "invalid document" } } }
    },
    "/api/documents/{documentId}": {
      "get": { "summary": "Get document", "responses": { "200": { "description": "{ data: Document }" }, "404": { "description": "not found" } } }
    },
    "/api/documents/{documentId}/file": {
      "get": { "summary": "Redirect to a presigned URL of the document file", "responses": { "307": { "description": "redirect" }, "404": { "description": "not found" }, "501": { "description": "storage not configured" } } },
      "put": { "summary": "Upload the document file", "requestBody": { "content": { "application/pdf": {} } }, "responses": { "200": { "description": "stored" } } }
    },
    "/api/documents/{documentId}/comments": {
      "get": { "summary": "List comments of a document", "responses": { "200": { "description": "{ data: Comment[] }" }, "404": { "description": "unknown document" } } },
      "post": { "summary": "Create comment", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/CommentRequest"} } } }, "responses": { "201": { "description": "{ data: Comment }" }, "400": { "description": "validation failed" }, "404": { "description": "unknown document" } } }
    },
    "/api/documents/{documentId}/comments/{commentId}/resolve": {
      "patch": { "summary": "Resolve comment (idempotent)", "requestBody": { "content": { "application/json": { "schema": {"type":"object"} } } }, "responses": { "200": { "description": "{ data: Comment }" }, "404": { "description": "not found" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Revoke the bearer token until it expires", "responses": { "200": { "description": "logged out" }, "401": { "description": "not authenticated" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
