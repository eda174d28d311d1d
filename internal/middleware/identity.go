package middleware

// identity.go holds the context keys the middleware chain fills in and the
// accessors handlers use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
)

const (
	ctxUserID  = "user_id"
	ctxProfile = "profile"
)

// UserID returns the authenticated user id, or "" outside JWTAuth.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok {
		return s
	}
	return ""
}

// CurrentProfile returns the live profile loaded by LoadProfile, or nil.
func CurrentProfile(c echo.Context) *model.Profile {
	p, _ := c.Get(ctxProfile).(*model.Profile)
	return p
}

// SetProfile stores p as the request's live profile. Handlers use it after
// completing signup so the rest of the request sees the new row.
func SetProfile(c echo.Context, p *model.Profile) { c.Set(ctxProfile, p) }

// rateSubject identifies the caller for rate limiting.
func rateSubject(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
