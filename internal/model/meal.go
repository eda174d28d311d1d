package model

import (
	"regexp"
	"time"
)

// Slot is one of the two fixed meal occasions per day.
type Slot string

const (
	SlotLunch  Slot = "Lunch"
	SlotDinner Slot = "Dinner"
)

// Slots lists the slots in display order.
var Slots = []Slot{SlotLunch, SlotDinner}

// Valid reports whether s is Lunch or Dinner.
func (s Slot) Valid() bool { return s == SlotLunch || s == SlotDinner }

// DefaultReadyAt is the ready-by time used when a meal is confirmed without
// an explicit time.
const DefaultReadyAt = "19:00"

// Meal mirrors the `meals` table: a reusable named dish of one family.
type Meal struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	FamilyCode  string    `json:"family_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snapshot returns the display copy stored on selections and confirmations.
func (m Meal) Snapshot() *MealSnapshot { return &MealSnapshot{Name: m.Name} }

// MealSnapshot is the denormalized meal copy written alongside a selection
// or confirmation.
type MealSnapshot struct {
	Name string `json:"name"`
}

// MealSelection mirrors `daily_meal_selections`: one member's non-binding
// wish for a slot on a date. At most one row exists per (user, date, slot).
type MealSelection struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	MealID      string           `json:"meal_id"`
	MealDate    string           `json:"meal_date"`
	Slot        Slot             `json:"slot"`
	FamilyCode  string           `json:"family_code"`
	ProfileData *ProfileSnapshot `json:"profile_data,omitempty"`
	MealData    *MealSnapshot    `json:"meal_data,omitempty"`
}

// ConfirmedMeal mirrors `confirmed_meals`: the family's binding decision for
// a slot on a date. At most one row exists per (family, date, slot).
type ConfirmedMeal struct {
	ID         string        `json:"id"`
	MealID     string        `json:"meal_id"`
	MealDate   string        `json:"meal_date"`
	Slot       Slot          `json:"slot"`
	ReadyAt    string        `json:"ready_at"`
	FamilyCode string        `json:"family_code"`
	MealData   *MealSnapshot `json:"meal_data,omitempty"`
}

var readyAtRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidReadyAt reports whether s is a 24h "HH:MM" time.
func ValidReadyAt(s string) bool { return readyAtRe.MatchString(s) }

// DefaultCategory is used for meals created without a category.
const DefaultCategory = "General"

// QuickAddDescription marks meals created by "add and pick".
const QuickAddDescription = "Quick add"

// StarterMeals seeds the catalogue of a family whose first member just
// completed signup, so the planner is not empty on day one.
func StarterMeals() []Meal {
	return []Meal{
		{Name: "Spaghetti Bolognese", Description: "Classic Italian meat sauce", Category: string(SlotDinner)},
		{Name: "Grilled Chicken Salad", Description: "Healthy greens and protein", Category: string(SlotLunch)},
		{Name: "Beef Tacos", Description: "Mexican style street tacos", Category: string(SlotDinner)},
		{Name: "Club Sandwich", Description: "Toasted bread with deli meats", Category: string(SlotLunch)},
		{Name: "Mushroom Risotto", Description: "Creamy arborio rice", Category: string(SlotDinner)},
	}
}
