package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>duomatch-auth — Swagger</title>
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

// Minimal OpenAPI document describing the auth endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "duomatch-auth", "version": "v0.1.0" },
  "paths": {
    "/auth/{provider}": {
      "get": {
        "summary": "Begin OAuth login (facebook or instagram)",
        "parameters": [{"name":"provider","in":"path","required":true,"schema":{"type":"string","enum":["facebook","instagram"]}}],
        "responses": { "302": { "description": "redirect to provider consent screen" }, "400": { "description": "unknown provider" } }
      }
    },
    "/auth/{provider}/callback": {
      "get": {
        "summary": "OAuth callback, renders the postMessage completion page",
        "parameters": [{"name":"provider","in":"path","required":true,"schema":{"type":"string"}},{"name":"code","in":"query","schema":{"type":"string"}},{"name":"state","in":"query","schema":{"type":"string"}}],
        "responses": { "200": { "description": "auth_success or auth_error completion page" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Rotate a refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}},"required":["refresh_token"]}}}}, "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid, expired or replayed refresh token" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout: revoke refresh token, drop session, blacklist access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"},"session_id":{"type":"string"}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/me": {
      "get": { "summary": "Current authenticated user", "responses": { "200": { "description": "user" }, "401": { "description": "not authenticated" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
