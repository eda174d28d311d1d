package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/handler"
	"github.com/iliyamo/family-kitchen/internal/middleware"
)

// RegisterProfile registers the caller's own profile under /v1/profile.
// These routes need a token but not a profile, since PUT is what creates it.
func RegisterProfile(e *echo.Echo, h *handler.ProfileHandler, jwtSecret string) {
	g := e.Group("/v1/profile", middleware.JWTAuth(jwtSecret))
	g.GET("", h.GetProfile)
	g.PUT("", h.SaveProfile)
	g.PATCH("/language", h.PatchLanguage)
}
