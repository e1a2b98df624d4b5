package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the share service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
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
    <title>mdreader-share — Swagger</title>
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

// Minimal OpenAPI document describing the share endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "mdreader-share", "version": "v0.1.0" },
  "paths": {
    "/api/save": {
      "post": {
        "summary": "Save a markdown document and return a shareable ID",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["content"],"properties":{"content":{"type":"string"},"title":{"type":"string"}}}}}},
        "responses": { "200": { "description": "id, slug, title, created and share url" }, "400": { "description": "missing/oversized content" }, "429": { "description": "rate limit exceeded" }, "500": { "description": "id generation or persistence failure" } }
      }
    },
    "/api/load": {
      "get": {
        "summary": "Load a document by ID or slug-ID",
        "parameters": [ { "name": "id", "in": "query", "required": true, "schema": {"type":"string"} } ],
        "responses": { "200": { "description": "document content and metadata" }, "400": { "description": "missing/invalid id" }, "403": { "description": "path escape detected" }, "404": { "description": "document not found" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
