// Package state holds the client's application state. A single
// coordinator owns it; every change goes through one of the replace or
// apply operations below, each taken under the state's lock.
package state

import (
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// State is safe for concurrent use.
type State struct {
	mu sync.RWMutex

	profile  *model.Profile
	language model.Language
	date     string

	meals      []model.Meal
	inventory  []model.InventoryItem
	selections []model.MealSelection
	confirmed  []model.ConfirmedMeal
	cart       []model.CartItem
	messages   []model.ChatMessage

	loading  bool
	hydrated bool
	syncedAt time.Time
}

// New returns an empty, signed-out state looking at today.
func New() *State {
	return &State{language: model.LangEnglish, date: model.Today()}
}

// SetProfile installs the caller's live profile. Its language preference,
// when set, becomes the UI language.
func (s *State) SetProfile(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = cloneProfile(p)
	if p != nil && p.Language.Valid() {
		s.language = p.Language
	}
}

func (s *State) Profile() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProfile(s.profile)
}

// FamilyCode is empty while signed out.
func (s *State) FamilyCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.FamilyCode
}

func (s *State) SetLanguage(l model.Language) {
	s.mu.Lock()
	s.language = l
	if s.profile != nil {
		s.profile.Language = l
	}
	s.mu.Unlock()
}

func (s *State) SetDate(d string) {
	s.mu.Lock()
	s.date = d
	s.mu.Unlock()
}

func (s *State) Date() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.date
}

func (s *State) SetLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Collection names one of the six synced collections.
type Collection string

const (
	Meals      Collection = "meals"
	Inventory  Collection = "inventory"
	Selections Collection = "selections"
	Confirmed  Collection = "confirmed"
	Cart       Collection = "cart"
	Messages   Collection = "messages"
)

// Mirrored lists the collections kept in the offline mirror.
var Mirrored = []Collection{Meals, Inventory, Cart, Confirmed}

// Update is the outcome of one sync run. Only collections marked Fresh
// are applied; the rest keep their last-known-good contents.
type Update struct {
	Family string
	Date   string

	Meals      []model.Meal
	Inventory  []model.InventoryItem
	Selections []model.MealSelection
	Confirmed  []model.ConfirmedMeal
	Cart       []model.CartItem
	Messages   []model.ChatMessage

	Fresh map[Collection]bool
}

// Apply replaces every fresh collection wholesale. It refuses an update
// fetched for another family, or for a date that has since changed, and
// drops any row that does not belong to the family.
func (s *State) Apply(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil || s.profile.FamilyCode != u.Family || s.date != u.Date {
		return false
	}
	f := u.Family
	if u.Fresh[Meals] {
		s.meals = ownRows(u.Meals, func(m model.Meal) string { return m.FamilyCode }, f)
	}
	if u.Fresh[Inventory] {
		s.inventory = ownRows(u.Inventory, func(i model.InventoryItem) string { return i.FamilyCode }, f)
	}
	if u.Fresh[Selections] {
		s.selections = ownRows(u.Selections, func(m model.MealSelection) string { return m.FamilyCode }, f)
	}
	if u.Fresh[Confirmed] {
		s.confirmed = ownRows(u.Confirmed, func(m model.ConfirmedMeal) string { return m.FamilyCode }, f)
	}
	if u.Fresh[Cart] {
		s.cart = ownRows(u.Cart, func(c model.CartItem) string { return c.FamilyCode }, f)
	}
	if u.Fresh[Messages] {
		s.messages = ownRows(u.Messages, func(m model.ChatMessage) string { return m.FamilyCode }, f)
	}
	if len(u.Fresh) > 0 {
		s.syncedAt = time.Now()
	}
	return true
}

func ownRows[T any](rows []T, family func(T) string, want string) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if family(r) == want {
			out = append(out, r)
		}
	}
	return out
}

// Hydrate paints the mirrored collections from the offline copy. It does
// nothing once a sync has landed, so stale data never overwrites fresh.
func (s *State) Hydrate(meals []model.Meal, inv []model.InventoryItem, cart []model.CartItem, conf []model.ConfirmedMeal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.syncedAt.IsZero() {
		return false
	}
	s.meals = slices.Clone(meals)
	s.inventory = slices.Clone(inv)
	s.cart = slices.Clone(cart)
	s.confirmed = cloneConfirmed(conf)
	s.hydrated = true
	return true
}

// Reset returns to the signed-out state.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.language = model.LangEnglish
	s.date = model.Today()
	s.meals, s.inventory, s.selections = nil, nil, nil
	s.confirmed, s.cart, s.messages = nil, nil, nil
	s.loading, s.hydrated = false, false
	s.syncedAt = time.Time{}
}
