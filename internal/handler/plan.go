package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
)

type planReq struct {
	MealID   string     `json:"meal_id"`
	MealDate string     `json:"meal_date"`
	Slot     model.Slot `json:"slot"`
	ReadyAt  string     `json:"ready_at"`
}

// validate normalizes the date (default today) and checks the slot.
func (r *planReq) validate() string {
	r.MealID = strings.TrimSpace(r.MealID)
	if r.MealID == "" {
		return "meal_id is required"
	}
	if !r.Slot.Valid() {
		return "slot must be Lunch or Dinner"
	}
	if r.MealDate == "" {
		r.MealDate = model.Today()
	} else if d, ok := model.ParseDay(r.MealDate); ok {
		r.MealDate = d
	} else {
		return "meal_date must be YYYY-MM-DD"
	}
	return ""
}

// ListSelections handles GET /selections?date=.
func (h *KitchenHandler) ListSelections(c echo.Context) error {
	date, ok := dateParam(c)
	if !ok {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	out, err := h.Selections.ListByFamilyDate(ctx, caller(c).FamilyCode, date)
	if err != nil {
		return storeError(c, err, "selection")
	}
	return c.JSON(http.StatusOK, out)
}

// PutSelection handles PUT /selections: the caller's wish for a slot. A
// second call for the same date and slot overwrites the first. Snapshots
// are taken from the live profile and meal rows, never from the body.
func (h *KitchenHandler) PutSelection(c echo.Context) error {
	var req planReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	p := caller(c)

	ctx, cancel := dbCtx(c)
	defer cancel()
	meal, err := h.Meals.GetByID(ctx, p.FamilyCode, req.MealID)
	if err != nil {
		return storeError(c, err, "meal")
	}
	stored, kind, err := h.Selections.Upsert(ctx, &model.MealSelection{
		UserID:      p.ID,
		MealID:      meal.ID,
		MealDate:    req.MealDate,
		Slot:        req.Slot,
		FamilyCode:  p.FamilyCode,
		ProfileData: p.Snapshot(),
		MealData:    meal.Snapshot(),
	})
	if err != nil {
		return storeError(c, err, "selection")
	}
	h.notify.changed(c, p.FamilyCode, model.TableSelections, kind, stored.ID)
	return c.JSON(http.StatusOK, stored)
}

// ListConfirmed handles GET /confirmed?date=.
func (h *KitchenHandler) ListConfirmed(c echo.Context) error {
	date, ok := dateParam(c)
	if !ok {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	out, err := h.Confirmed.ListByFamilyDate(ctx, caller(c).FamilyCode, date)
	if err != nil {
		return storeError(c, err, "confirmed meal")
	}
	return c.JSON(http.StatusOK, out)
}

// PutConfirmed handles PUT /confirmed. Routed behind RequireRole so only
// the member holding confirmation authority reaches it. Existing
// selections for the slot are left untouched.
func (h *KitchenHandler) PutConfirmed(c echo.Context) error {
	var req planReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	if req.ReadyAt == "" {
		req.ReadyAt = model.DefaultReadyAt
	}
	if !model.ValidReadyAt(req.ReadyAt) {
		return badRequest(c, "ready_at must be HH:MM")
	}
	p := caller(c)

	ctx, cancel := dbCtx(c)
	defer cancel()
	meal, err := h.Meals.GetByID(ctx, p.FamilyCode, req.MealID)
	if err != nil {
		return storeError(c, err, "meal")
	}
	stored, kind, err := h.Confirmed.Upsert(ctx, &model.ConfirmedMeal{
		MealID:     meal.ID,
		MealDate:   req.MealDate,
		Slot:       req.Slot,
		ReadyAt:    req.ReadyAt,
		FamilyCode: p.FamilyCode,
		MealData:   meal.Snapshot(),
	})
	if err != nil {
		return storeError(c, err, "confirmed meal")
	}
	h.notify.changed(c, p.FamilyCode, model.TableConfirmed, kind, stored.ID)
	return c.JSON(http.StatusOK, stored)
}

// PatchConfirmed handles PATCH /confirmed/:id, changing the ready-by time.
func (h *KitchenHandler) PatchConfirmed(c echo.Context) error {
	var req struct {
		ReadyAt string `json:"ready_at"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if !model.ValidReadyAt(req.ReadyAt) {
		return badRequest(c, "ready_at must be HH:MM")
	}
	p := caller(c)

	ctx, cancel := dbCtx(c)
	defer cancel()
	updated, err := h.Confirmed.UpdateReadyAt(ctx, p.FamilyCode, c.Param("id"), req.ReadyAt)
	if err != nil {
		return storeError(c, err, "confirmed meal")
	}
	h.notify.changed(c, p.FamilyCode, model.TableConfirmed, model.ChangeUpdate, updated.ID)
	return c.JSON(http.StatusOK, updated)
}
