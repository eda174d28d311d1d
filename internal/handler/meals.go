package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// ListMeals handles GET /meals.
func (h *KitchenHandler) ListMeals(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	meals, err := h.Meals.ListByFamily(ctx, caller(c).FamilyCode)
	if err != nil {
		return storeError(c, err, "meal")
	}
	return c.JSON(http.StatusOK, meals)
}

type createMealReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
}

// CreateMeal handles POST /meals. Meals have no edit or delete path.
func (h *KitchenHandler) CreateMeal(c echo.Context) error {
	var req createMealReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = model.DefaultCategory
	}
	p := caller(c)
	m := &model.Meal{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		ImageURL:    strings.TrimSpace(req.ImageURL),
		CreatedBy:   p.ID,
		FamilyCode:  p.FamilyCode,
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Meals.Create(ctx, m); err != nil {
		return storeError(c, err, "meal")
	}
	h.notify.changed(c, p.FamilyCode, model.TableMeals, model.ChangeInsert, m.ID)
	return c.JSON(http.StatusCreated, m)
}
