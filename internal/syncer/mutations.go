package syncer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/backend"
	"github.com/iliyamo/family-kitchen/internal/model"
)

// mutate runs one remote write for the signed-in member and then re-syncs.
// There is no retry and no optimistic update: state changes only when the
// following sync lands.
func (c *Coordinator) mutate(ctx context.Context, action string, write func(ctx context.Context, p *model.Profile) error) error {
	p := c.state.Profile()
	if p == nil || p.FamilyCode == "" {
		return ErrNotAuthenticated
	}
	if err := write(ctx, p); err != nil {
		c.log.Warn("mutation failed", zap.String("action", action), zap.Error(err))
		return err
	}
	c.Sync(ctx)
	return nil
}

func (c *Coordinator) plan(mealID string, slot model.Slot, readyAt string) (backend.PlanRequest, error) {
	if strings.TrimSpace(mealID) == "" {
		return backend.PlanRequest{}, errors.New("meal id is required")
	}
	if !slot.Valid() {
		return backend.PlanRequest{}, errors.New("slot must be Lunch or Dinner")
	}
	return backend.PlanRequest{MealID: mealID, MealDate: c.state.Date(), Slot: slot, ReadyAt: readyAt}, nil
}

// SelectMeal records the caller's wish for slot on the current date.
func (c *Coordinator) SelectMeal(ctx context.Context, mealID string, slot model.Slot) error {
	req, err := c.plan(mealID, slot, "")
	if err != nil {
		return err
	}
	return c.mutate(ctx, "select meal", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.SelectMeal(ctx, p.FamilyCode, req)
		return err
	})
}

// ConfirmMeal records the family's decision for slot on the current date.
// The server only accepts it from a member with confirmation authority.
func (c *Coordinator) ConfirmMeal(ctx context.Context, mealID string, slot model.Slot, readyAt string) error {
	if readyAt == "" {
		readyAt = model.DefaultReadyAt
	}
	if !model.ValidReadyAt(readyAt) {
		return errors.New("ready time must be HH:MM")
	}
	req, err := c.plan(mealID, slot, readyAt)
	if err != nil {
		return err
	}
	return c.mutate(ctx, "confirm meal", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.ConfirmMeal(ctx, p.FamilyCode, req)
		return err
	})
}

func (c *Coordinator) UpdateReadyTime(ctx context.Context, confirmedID, readyAt string) error {
	if !model.ValidReadyAt(readyAt) {
		return errors.New("ready time must be HH:MM")
	}
	return c.mutate(ctx, "update ready time", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.UpdateReadyAt(ctx, p.FamilyCode, confirmedID, readyAt)
		return err
	})
}

// AddAndPickMeal creates a meal and immediately picks it for slot: a
// confirmation at the default ready time for a member who can confirm, a
// selection for everyone else. If the pick fails the new meal stays in the
// catalogue unpicked.
func (c *Coordinator) AddAndPickMeal(ctx context.Context, name string, slot model.Slot) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("meal name is required")
	}
	if !slot.Valid() {
		return errors.New("slot must be Lunch or Dinner")
	}
	return c.mutate(ctx, "add and pick meal", func(ctx context.Context, p *model.Profile) error {
		meal, err := c.store.CreateMeal(ctx, p.FamilyCode, model.Meal{
			Name:        name,
			Description: model.QuickAddDescription,
			Category:    string(slot),
		})
		if err != nil {
			return err
		}
		req := backend.PlanRequest{MealID: meal.ID, MealDate: c.state.Date(), Slot: slot}
		if p.Role.CanConfirm() {
			req.ReadyAt = model.DefaultReadyAt
			_, err = c.store.ConfirmMeal(ctx, p.FamilyCode, req)
		} else {
			_, err = c.store.SelectMeal(ctx, p.FamilyCode, req)
		}
		return err
	})
}

// ---- Pantry ----

func (c *Coordinator) AddInventoryItem(ctx context.Context, name string, qty int, unit string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("item name is required")
	}
	return c.mutate(ctx, "add inventory", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.AddInventory(ctx, p.FamilyCode, name, model.ClampQuantity(qty), strings.TrimSpace(unit))
		return err
	})
}

// SetInventoryQuantity stores an absolute quantity, never below zero.
func (c *Coordinator) SetInventoryQuantity(ctx context.Context, id string, qty int) error {
	return c.mutate(ctx, "set inventory", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.SetInventoryQuantity(ctx, p.FamilyCode, id, model.ClampQuantity(qty))
		return err
	})
}

// AdjustInventory changes a quantity by delta; the server clamps at zero.
func (c *Coordinator) AdjustInventory(ctx context.Context, id string, delta int) error {
	return c.mutate(ctx, "adjust inventory", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.AdjustInventory(ctx, p.FamilyCode, id, delta)
		return err
	})
}

func (c *Coordinator) DeleteInventoryItem(ctx context.Context, id string) error {
	return c.mutate(ctx, "delete inventory", func(ctx context.Context, p *model.Profile) error {
		return c.store.DeleteInventory(ctx, p.FamilyCode, id)
	})
}

func (c *Coordinator) AddCartItem(ctx context.Context, name string, qty int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("item name is required")
	}
	if qty < 1 {
		qty = 1
	}
	return c.mutate(ctx, "add cart", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.AddCart(ctx, p.FamilyCode, name, qty)
		return err
	})
}

func (c *Coordinator) ToggleCartItem(ctx context.Context, id string) error {
	return c.mutate(ctx, "toggle cart", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.ToggleCart(ctx, p.FamilyCode, id)
		return err
	})
}

func (c *Coordinator) RemoveCartItem(ctx context.Context, id string) error {
	return c.mutate(ctx, "remove cart", func(ctx context.Context, p *model.Profile) error {
		return c.store.DeleteCart(ctx, p.FamilyCode, id)
	})
}

// ---- Chat ----

func (c *Coordinator) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("message is empty")
	}
	return c.mutate(ctx, "send message", func(ctx context.Context, p *model.Profile) error {
		_, err := c.store.SendMessage(ctx, p.FamilyCode, text)
		return err
	})
}
