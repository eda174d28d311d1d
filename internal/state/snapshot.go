package state

import (
	"slices"
	"time"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// Snapshot is a deep copy of the state at one instant.
type Snapshot struct {
	Profile  *model.Profile
	Language model.Language
	Date     string

	Meals      []model.Meal
	Inventory  []model.InventoryItem
	Selections []model.MealSelection
	Confirmed  []model.ConfirmedMeal
	Cart       []model.CartItem
	Messages   []model.ChatMessage

	Loading  bool
	Hydrated bool
	SyncedAt time.Time
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Profile:    cloneProfile(s.profile),
		Language:   s.language,
		Date:       s.date,
		Meals:      slices.Clone(s.meals),
		Inventory:  slices.Clone(s.inventory),
		Selections: cloneSelections(s.selections),
		Confirmed:  cloneConfirmed(s.confirmed),
		Cart:       slices.Clone(s.cart),
		Messages:   cloneMessages(s.messages),
		Loading:    s.loading,
		Hydrated:   s.hydrated,
		SyncedAt:   s.syncedAt,
	}
}

// SignedIn reports whether a profile is loaded.
func (s Snapshot) SignedIn() bool { return s.Profile != nil }

// SelectionsFor returns the members' picks for slot on the snapshot date.
func (s Snapshot) SelectionsFor(slot model.Slot) []model.MealSelection {
	var out []model.MealSelection
	for _, sel := range s.Selections {
		if sel.Slot == slot && sel.MealDate == s.Date {
			out = append(out, sel)
		}
	}
	return out
}

// ConfirmedFor returns the family's decision for slot, if any.
func (s Snapshot) ConfirmedFor(slot model.Slot) *model.ConfirmedMeal {
	for i := range s.Confirmed {
		if c := s.Confirmed[i]; c.Slot == slot && c.MealDate == s.Date {
			return &c
		}
	}
	return nil
}

// MySelection returns the caller's own pick for slot.
func (s Snapshot) MySelection(slot model.Slot) *model.MealSelection {
	if s.Profile == nil {
		return nil
	}
	for _, sel := range s.SelectionsFor(slot) {
		if sel.UserID == s.Profile.ID {
			return &sel
		}
	}
	return nil
}

func (s Snapshot) LowStock() []model.InventoryItem {
	var out []model.InventoryItem
	for _, it := range s.Inventory {
		if it.LowStock() {
			out = append(out, it)
		}
	}
	return out
}

// OpenCartCount counts items still to buy.
func (s Snapshot) OpenCartCount() int {
	n := 0
	for _, c := range s.Cart {
		if !c.IsPurchased {
			n++
		}
	}
	return n
}

// MealByID looks a meal up in the catalogue.
func (s Snapshot) MealByID(id string) *model.Meal {
	for i := range s.Meals {
		if s.Meals[i].ID == id {
			m := s.Meals[i]
			return &m
		}
	}
	return nil
}

func cloneProfile(p *model.Profile) *model.Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneProfileSnap(p *model.ProfileSnapshot) *model.ProfileSnapshot {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneMealSnap(m *model.MealSnapshot) *model.MealSnapshot {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func cloneSelections(in []model.MealSelection) []model.MealSelection {
	if in == nil {
		return nil
	}
	out := make([]model.MealSelection, len(in))
	for i, s := range in {
		s.ProfileData = cloneProfileSnap(s.ProfileData)
		s.MealData = cloneMealSnap(s.MealData)
		out[i] = s
	}
	return out
}

func cloneConfirmed(in []model.ConfirmedMeal) []model.ConfirmedMeal {
	if in == nil {
		return nil
	}
	out := make([]model.ConfirmedMeal, len(in))
	for i, c := range in {
		c.MealData = cloneMealSnap(c.MealData)
		out[i] = c
	}
	return out
}

func cloneMessages(in []model.ChatMessage) []model.ChatMessage {
	if in == nil {
		return nil
	}
	out := make([]model.ChatMessage, len(in))
	for i, m := range in {
		m.ProfileData = cloneProfileSnap(m.ProfileData)
		out[i] = m
	}
	return out
}
