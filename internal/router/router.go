package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/handler"
	"github.com/iliyamo/family-kitchen/internal/middleware"
)

// RegisterRoutes registers the probes. ready may be nil when there is no
// database to check.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers the identity endpoints under /v1/auth. Only
// session requires an access token; logout accepts either a refresh token
// in the body or a bearer header. o may be nil to leave OAuth off.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o *handler.OAuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)
	g.GET("/session", a.Session, middleware.JWTAuth(jwtSecret))

	if o != nil {
		g.GET("/oauth/:provider", o.Start)
		g.GET("/oauth/:provider/callback", o.Callback)
	}
}
