package model

import "time"

// Table names as they appear on change events and in the schema.
const (
	TableProfiles   = "profiles"
	TableMeals      = "meals"
	TableSelections = "daily_meal_selections"
	TableConfirmed  = "confirmed_meals"
	TableInventory  = "inventory"
	TableCart       = "shopping_cart"
	TableMessages   = "chat_messages"
)

// ChangeType is the row-level operation that produced a change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is published once per successful write and delivered to every
// subscriber of the family. Subscribers are not expected to diff it.
type ChangeEvent struct {
	FamilyCode string     `json:"family_code"`
	Table      string     `json:"table"`
	Type       ChangeType `json:"type"`
	RowID      string     `json:"row_id,omitempty"`
	At         time.Time  `json:"at"`
}

// FamilyChannel is the realtime channel name for a family.
func FamilyChannel(familyCode string) string { return "family:" + familyCode }
