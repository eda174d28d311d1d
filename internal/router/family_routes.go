package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/handler"
	"github.com/iliyamo/family-kitchen/internal/middleware"
	"github.com/iliyamo/family-kitchen/internal/model"
)

// FamilyDeps carries what the family-scoped routes need besides handlers.
// Cache and RateLimit are optional.
type FamilyDeps struct {
	JWTSecret string
	Profiles  middleware.ProfileGetter
	Cache     *middleware.ResponseCache
	RateLimit echo.MiddlewareFunc
}

// RegisterFamily registers every family collection under
// /v1/families/:code. Each request carries a valid JWT, resolves the live
// profile and must target the caller's own family.
func RegisterFamily(e *echo.Echo, k *handler.KitchenHandler, ch *handler.ChangesHandler, d FamilyDeps) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.LoadProfile(d.Profiles),
		middleware.FamilyGuard(),
	}
	if d.RateLimit != nil {
		mw = append(mw, d.RateLimit)
	}
	g := e.Group("/v1/families/:code", mw...)

	// The change stream must not pass through the response cache, which
	// buffers the body.
	if ch != nil {
		g.GET("/changes", ch.Stream)
	}

	var read []echo.MiddlewareFunc
	if d.Cache != nil {
		read = append(read, d.Cache.Middleware())
	}
	confirm := middleware.RequireRole(model.Role.CanConfirm)
	parent := middleware.RequireRole(model.Role.IsParent)

	// ---- Meals ----
	g.GET("/meals", k.ListMeals, read...)
	g.POST("/meals", k.CreateMeal)

	// ---- Plan ----
	g.GET("/selections", k.ListSelections, read...)
	g.PUT("/selections", k.PutSelection)
	g.GET("/confirmed", k.ListConfirmed, read...)
	g.PUT("/confirmed", k.PutConfirmed, confirm)
	g.PATCH("/confirmed/:id", k.PatchConfirmed, confirm)

	// ---- Pantry ----
	g.GET("/inventory", k.ListInventory, read...)
	g.POST("/inventory", k.AddInventory, parent)
	g.PATCH("/inventory/:id", k.PatchInventory, parent)
	g.DELETE("/inventory/:id", k.DeleteInventory, parent)

	g.GET("/cart", k.ListCart, read...)
	g.POST("/cart", k.AddCart)
	g.POST("/cart/:id/toggle", k.ToggleCart)
	g.DELETE("/cart/:id", k.DeleteCart)

	// ---- Chat ----
	g.GET("/messages", k.ListMessages, read...)
	g.POST("/messages", k.SendMessage)
}
