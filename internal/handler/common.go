package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/changefeed"
	"github.com/iliyamo/family-kitchen/internal/middleware"
	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/repository"
)

// dbTimeout bounds every store call made by a handler.
const dbTimeout = 5 * time.Second

// Store interfaces are the slices of the repositories the handlers use.

type MealStore interface {
	ListByFamily(ctx context.Context, family string) ([]model.Meal, error)
	GetByID(ctx context.Context, family, id string) (*model.Meal, error)
	Create(ctx context.Context, m *model.Meal) error
	CountByFamily(ctx context.Context, family string) (int, error)
}

type SelectionStore interface {
	ListByFamilyDate(ctx context.Context, family, date string) ([]model.MealSelection, error)
	Upsert(ctx context.Context, sel *model.MealSelection) (*model.MealSelection, model.ChangeType, error)
}

type ConfirmedStore interface {
	ListByFamilyDate(ctx context.Context, family, date string) ([]model.ConfirmedMeal, error)
	Upsert(ctx context.Context, c *model.ConfirmedMeal) (*model.ConfirmedMeal, model.ChangeType, error)
	UpdateReadyAt(ctx context.Context, family, id, readyAt string) (*model.ConfirmedMeal, error)
}

type InventoryStore interface {
	ListByFamily(ctx context.Context, family string) ([]model.InventoryItem, error)
	Create(ctx context.Context, it *model.InventoryItem) error
	SetQuantity(ctx context.Context, family, id string, qty int) (*model.InventoryItem, error)
	AdjustQuantity(ctx context.Context, family, id string, delta int) (*model.InventoryItem, error)
	Delete(ctx context.Context, family, id string) error
}

type CartStore interface {
	ListByFamily(ctx context.Context, family string) ([]model.CartItem, error)
	Create(ctx context.Context, c *model.CartItem) error
	Toggle(ctx context.Context, family, id string) (*model.CartItem, error)
	Delete(ctx context.Context, family, id string) error
}

type ChatStore interface {
	ListByFamily(ctx context.Context, family string, limit int) ([]model.ChatMessage, error)
	Create(ctx context.Context, m *model.ChatMessage) error
}

type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	Save(ctx context.Context, p *model.Profile) (bool, error)
	UpdateLanguage(ctx context.Context, id string, lang model.Language) error
}

type UserStore interface {
	Create(ctx context.Context, email, password string, cost int) (string, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	FindOrCreateOAuth(ctx context.Context, provider, subject, email string) (model.User, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	Consume(ctx context.Context, tokenHash string) (string, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

// storeError maps repository sentinels onto HTTP responses.
func storeError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrFamilyLocked):
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrFamilyLocked.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// Invalidator drops every cached read of a family.
type Invalidator interface {
	Invalidate(ctx context.Context, family string) error
}

// notifier reports a successful write. The family's cached reads are
// dropped before the event goes out, so a client reacting to the event
// never reads the pre-write body. Failures are logged only: the row is
// already committed.
type notifier struct {
	pub   changefeed.Publisher
	cache Invalidator
	log   *zap.Logger
}

func (n notifier) changed(c echo.Context, family, table string, typ model.ChangeType, rowID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
	defer cancel()
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx, family); err != nil && n.log != nil {
			n.log.Warn("cache invalidation failed", zap.String("family", family), zap.Error(err))
		}
	}
	if n.pub == nil {
		return
	}
	ev := changefeed.NewEvent(family, table, typ, rowID)
	if err := n.pub.Publish(ctx, ev); err != nil && n.log != nil {
		n.log.Warn("publish change failed",
			zap.String("family", family), zap.String("table", table), zap.Error(err))
	}
}

// caller returns the live profile loaded by the middleware chain. Routes
// that use it are always mounted behind LoadProfile.
func caller(c echo.Context) *model.Profile {
	return middleware.CurrentProfile(c)
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today in UTC.
func dateParam(c echo.Context) (string, bool) {
	d := c.QueryParam("date")
	if d == "" {
		return model.Today(), true
	}
	return model.ParseDay(d)
}

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}
