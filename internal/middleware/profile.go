package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/repository"
)

// ProfileGetter is the slice of ProfileRepo the loader needs.
type ProfileGetter interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
}

// LoadProfile resolves the caller's live profile on every request. Role and
// family are always taken from this row, never from token claims or from
// snapshots stored on other rows. A user who has not completed signup gets
// 403 with "profile setup required".
func LoadProfile(profiles ProfileGetter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := UserID(c)
			if uid == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			p, err := profiles.GetByID(c.Request().Context(), uid)
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "profile setup required"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
			}
			SetProfile(c, p)
			return next(c)
		}
	}
}

// FamilyGuard requires the :code path parameter to equal the caller's
// family. It is the tenancy filter for every family-scoped route.
func FamilyGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := CurrentProfile(c)
			if p == nil || p.FamilyCode == "" || model.NormalizeFamilyCode(c.Param("code")) != p.FamilyCode {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireRole aborts with 403 unless allow accepts the caller's live role.
func RequireRole(allow func(model.Role) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := CurrentProfile(c)
			if p == nil || !allow(p.Role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
