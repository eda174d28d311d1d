package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/state"
	"github.com/iliyamo/family-kitchen/internal/syncer"
)

func TestRealMainWithoutCommand(t *testing.T) {
	args := os.Args
	t.Cleanup(func() { os.Args = args })
	os.Args = []string{"kitchen"}
	assert.Equal(t, 2, realMain())
}

func TestReportReturnsFailureCode(t *testing.T) {
	assert.Equal(t, 1, report(syncer.ErrNotAuthenticated))
	assert.Equal(t, 1, report(fmt.Errorf("bootstrap: %w", syncer.ErrProfileSetupRequired)))
	assert.Equal(t, 1, report(errors.New("boom")))
}

func TestParseRole(t *testing.T) {
	r, ok := parseRole("mother")
	assert.True(t, ok)
	assert.Equal(t, model.RoleMother, r)
	_, ok = parseRole("uncle")
	assert.False(t, ok)
}

func TestPrintSnapshot(t *testing.T) {
	var b strings.Builder
	printSnapshot(&b, state.Snapshot{
		Profile: &model.Profile{Name: "Sarah", Role: model.RoleMother, FamilyCode: "smithhouse"},
		Date:    "2026-03-01",
		Meals:   []model.Meal{{ID: "m1", Name: "Tacos"}},
		Confirmed: []model.ConfirmedMeal{
			{ID: "c1", MealID: "m1", MealDate: "2026-03-01", Slot: model.SlotDinner, ReadyAt: "19:00"},
		},
		Inventory: []model.InventoryItem{{ID: "i1", ItemName: "Milk", Quantity: 1, Unit: "L"}},
		Cart:      []model.CartItem{{ID: "k1", ItemName: "Eggs", Quantity: 2}},
	})
	out := b.String()
	assert.Contains(t, out, "Sarah (Mother), family smithhouse, 2026-03-01")
	assert.Contains(t, out, "Tacos")
	assert.Contains(t, out, "ready 19:00")
	assert.Contains(t, out, "Pantry (1 low)")
	assert.Contains(t, out, "Cart (1 to buy)")
}
