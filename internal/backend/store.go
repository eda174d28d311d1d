package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// PlanRequest picks a meal for a slot. MealDate defaults to today on the
// server; ReadyAt only applies to confirmations.
type PlanRequest struct {
	MealID   string     `json:"meal_id"`
	MealDate string     `json:"meal_date,omitempty"`
	Slot     model.Slot `json:"slot"`
	ReadyAt  string     `json:"ready_at,omitempty"`
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	out := []T{}
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func withDate(path, date string) string {
	if date == "" {
		return path
	}
	return path + "?date=" + url.QueryEscape(date)
}

// ---- Reads ----

func (c *Client) ListMeals(ctx context.Context, family string) ([]model.Meal, error) {
	return list[model.Meal](ctx, c, familyPath(family, "meals"))
}

func (c *Client) ListInventory(ctx context.Context, family string) ([]model.InventoryItem, error) {
	return list[model.InventoryItem](ctx, c, familyPath(family, "inventory"))
}

func (c *Client) ListSelections(ctx context.Context, family, date string) ([]model.MealSelection, error) {
	return list[model.MealSelection](ctx, c, withDate(familyPath(family, "selections"), date))
}

func (c *Client) ListConfirmed(ctx context.Context, family, date string) ([]model.ConfirmedMeal, error) {
	return list[model.ConfirmedMeal](ctx, c, withDate(familyPath(family, "confirmed"), date))
}

func (c *Client) ListCart(ctx context.Context, family string) ([]model.CartItem, error) {
	return list[model.CartItem](ctx, c, familyPath(family, "cart"))
}

func (c *Client) ListMessages(ctx context.Context, family string) ([]model.ChatMessage, error) {
	return list[model.ChatMessage](ctx, c, familyPath(family, "messages"))
}

// ---- Meals and plan ----

func (c *Client) CreateMeal(ctx context.Context, family string, m model.Meal) (*model.Meal, error) {
	var out model.Meal
	body := map[string]string{
		"name":        m.Name,
		"description": m.Description,
		"category":    m.Category,
		"image_url":   m.ImageURL,
	}
	if err := c.call(ctx, http.MethodPost, familyPath(family, "meals"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SelectMeal(ctx context.Context, family string, req PlanRequest) (*model.MealSelection, error) {
	req.ReadyAt = ""
	var out model.MealSelection
	if err := c.call(ctx, http.MethodPut, familyPath(family, "selections"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmMeal(ctx context.Context, family string, req PlanRequest) (*model.ConfirmedMeal, error) {
	var out model.ConfirmedMeal
	if err := c.call(ctx, http.MethodPut, familyPath(family, "confirmed"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateReadyAt(ctx context.Context, family, id, readyAt string) (*model.ConfirmedMeal, error) {
	var out model.ConfirmedMeal
	err := c.call(ctx, http.MethodPatch, familyPath(family, "confirmed", id), map[string]string{"ready_at": readyAt}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- Pantry ----

func (c *Client) AddInventory(ctx context.Context, family, name string, qty int, unit string) (*model.InventoryItem, error) {
	var out model.InventoryItem
	body := map[string]any{"item_name": name, "quantity": qty, "unit": unit}
	if err := c.call(ctx, http.MethodPost, familyPath(family, "inventory"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetInventoryQuantity(ctx context.Context, family, id string, qty int) (*model.InventoryItem, error) {
	return c.patchInventory(ctx, family, id, map[string]int{"quantity": qty})
}

func (c *Client) AdjustInventory(ctx context.Context, family, id string, delta int) (*model.InventoryItem, error) {
	return c.patchInventory(ctx, family, id, map[string]int{"delta": delta})
}

func (c *Client) patchInventory(ctx context.Context, family, id string, body map[string]int) (*model.InventoryItem, error) {
	var out model.InventoryItem
	if err := c.call(ctx, http.MethodPatch, familyPath(family, "inventory", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteInventory(ctx context.Context, family, id string) error {
	return c.call(ctx, http.MethodDelete, familyPath(family, "inventory", id), nil, nil)
}

func (c *Client) AddCart(ctx context.Context, family, name string, qty int) (*model.CartItem, error) {
	var out model.CartItem
	body := map[string]any{"item_name": name, "quantity": qty}
	if err := c.call(ctx, http.MethodPost, familyPath(family, "cart"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleCart(ctx context.Context, family, id string) (*model.CartItem, error) {
	var out model.CartItem
	if err := c.call(ctx, http.MethodPost, familyPath(family, "cart", id, "toggle"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCart(ctx context.Context, family, id string) error {
	return c.call(ctx, http.MethodDelete, familyPath(family, "cart", id), nil, nil)
}

// ---- Chat ----

func (c *Client) SendMessage(ctx context.Context, family, text string) (*model.ChatMessage, error) {
	var out model.ChatMessage
	if err := c.call(ctx, http.MethodPost, familyPath(family, "messages"), map[string]string{"message": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
