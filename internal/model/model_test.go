package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleAuthority(t *testing.T) {
	assert.True(t, RoleMother.CanConfirm())
	assert.False(t, RoleFather.CanConfirm())
	assert.False(t, RoleSon.CanConfirm())

	assert.True(t, RoleMother.IsParent())
	assert.True(t, RoleFather.IsParent())
	assert.False(t, RoleDaughter.IsParent())

	assert.False(t, Role("Uncle").Valid())
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 0, ClampQuantity(-1))
	assert.Equal(t, 0, ClampQuantity(0))
	assert.Equal(t, 3, ClampQuantity(3))
}

func TestLowStock(t *testing.T) {
	assert.True(t, InventoryItem{Quantity: 0}.LowStock())
	assert.True(t, InventoryItem{Quantity: 1}.LowStock())
	assert.False(t, InventoryItem{Quantity: 2}.LowStock())
}

func TestNormalizeFamilyCode(t *testing.T) {
	assert.Equal(t, "smithhouse", NormalizeFamilyCode("  SmithHouse "))
}

func TestValidReadyAt(t *testing.T) {
	assert.True(t, ValidReadyAt("19:00"))
	assert.True(t, ValidReadyAt("07:30"))
	assert.False(t, ValidReadyAt("24:00"))
	assert.False(t, ValidReadyAt("7pm"))
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 01:30 local on Jan 2nd is still Jan 1st in UTC.
	ts := time.Date(2024, 1, 2, 1, 30, 0, 0, loc)
	assert.Equal(t, "2024-01-01", Day(ts))

	d, ok := ParseDay("2024-01-01")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", d)

	_, ok = ParseDay("01/01/2024")
	assert.False(t, ok)
}
