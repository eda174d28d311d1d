package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// ListInventory handles GET /inventory.
func (h *KitchenHandler) ListInventory(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	items, err := h.Inventory.ListByFamily(ctx, caller(c).FamilyCode)
	if err != nil {
		return storeError(c, err, "item")
	}
	return c.JSON(http.StatusOK, items)
}

// AddInventory handles POST /inventory (parents only).
func (h *KitchenHandler) AddInventory(c echo.Context) error {
	var req struct {
		ItemName string `json:"item_name"`
		Quantity int    `json:"quantity"`
		Unit     string `json:"unit"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.ItemName)
	if name == "" {
		return badRequest(c, "item_name is required")
	}
	p := caller(c)
	it := &model.InventoryItem{
		ItemName:   name,
		Quantity:   req.Quantity,
		Unit:       strings.TrimSpace(req.Unit),
		FamilyCode: p.FamilyCode,
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Inventory.Create(ctx, it); err != nil {
		return storeError(c, err, "item")
	}
	h.notify.changed(c, p.FamilyCode, model.TableInventory, model.ChangeInsert, it.ID)
	return c.JSON(http.StatusCreated, it)
}

// PatchInventory handles PATCH /inventory/:id with exactly one of
// {"quantity": n} (absolute) or {"delta": d} (relative). The stored
// quantity never goes below zero.
func (h *KitchenHandler) PatchInventory(c echo.Context) error {
	var req struct {
		Quantity *int `json:"quantity"`
		Delta    *int `json:"delta"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if (req.Quantity == nil) == (req.Delta == nil) {
		return badRequest(c, "provide exactly one of quantity or delta")
	}
	p := caller(c)
	id := c.Param("id")

	ctx, cancel := dbCtx(c)
	defer cancel()
	var (
		it  *model.InventoryItem
		err error
	)
	if req.Quantity != nil {
		it, err = h.Inventory.SetQuantity(ctx, p.FamilyCode, id, model.ClampQuantity(*req.Quantity))
	} else {
		it, err = h.Inventory.AdjustQuantity(ctx, p.FamilyCode, id, *req.Delta)
	}
	if err != nil {
		return storeError(c, err, "item")
	}
	h.notify.changed(c, p.FamilyCode, model.TableInventory, model.ChangeUpdate, it.ID)
	return c.JSON(http.StatusOK, it)
}

// DeleteInventory handles DELETE /inventory/:id (parents only).
func (h *KitchenHandler) DeleteInventory(c echo.Context) error {
	p := caller(c)
	id := c.Param("id")
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Inventory.Delete(ctx, p.FamilyCode, id); err != nil {
		return storeError(c, err, "item")
	}
	h.notify.changed(c, p.FamilyCode, model.TableInventory, model.ChangeDelete, id)
	return c.NoContent(http.StatusNoContent)
}

// ListCart handles GET /cart, newest first.
func (h *KitchenHandler) ListCart(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	items, err := h.Cart.ListByFamily(ctx, caller(c).FamilyCode)
	if err != nil {
		return storeError(c, err, "cart item")
	}
	return c.JSON(http.StatusOK, items)
}

// AddCart handles POST /cart. Any member may add to the shopping list.
func (h *KitchenHandler) AddCart(c echo.Context) error {
	var req struct {
		ItemName string `json:"item_name"`
		Quantity int    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.ItemName)
	if name == "" {
		return badRequest(c, "item_name is required")
	}
	p := caller(c)
	item := &model.CartItem{ItemName: name, Quantity: req.Quantity, FamilyCode: p.FamilyCode}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Cart.Create(ctx, item); err != nil {
		return storeError(c, err, "cart item")
	}
	h.notify.changed(c, p.FamilyCode, model.TableCart, model.ChangeInsert, item.ID)
	return c.JSON(http.StatusCreated, item)
}

// ToggleCart handles POST /cart/:id/toggle.
func (h *KitchenHandler) ToggleCart(c echo.Context) error {
	p := caller(c)
	ctx, cancel := dbCtx(c)
	defer cancel()
	item, err := h.Cart.Toggle(ctx, p.FamilyCode, c.Param("id"))
	if err != nil {
		return storeError(c, err, "cart item")
	}
	h.notify.changed(c, p.FamilyCode, model.TableCart, model.ChangeUpdate, item.ID)
	return c.JSON(http.StatusOK, item)
}

// DeleteCart handles DELETE /cart/:id.
func (h *KitchenHandler) DeleteCart(c echo.Context) error {
	p := caller(c)
	id := c.Param("id")
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Cart.Delete(ctx, p.FamilyCode, id); err != nil {
		return storeError(c, err, "cart item")
	}
	h.notify.changed(c, p.FamilyCode, model.TableCart, model.ChangeDelete, id)
	return c.NoContent(http.StatusNoContent)
}
