package handler

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/repository"
	"github.com/iliyamo/family-kitchen/internal/utils"
)

// memDB is an in-memory stand-in for every store, enforcing the same
// family filters and unique keys as the MySQL schema.
type memDB struct {
	mu        sync.Mutex
	seq       int
	users     map[string]model.User
	refresh   map[string]string // hash -> user id
	profiles  map[string]model.Profile
	meals     map[string]model.Meal
	sels      map[string]model.MealSelection
	confirmed map[string]model.ConfirmedMeal
	inventory map[string]model.InventoryItem
	cart      map[string]model.CartItem
	chat      []model.ChatMessage
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[string]model.User{},
		refresh:   map[string]string{},
		profiles:  map[string]model.Profile{},
		meals:     map[string]model.Meal{},
		sels:      map[string]model.MealSelection{},
		confirmed: map[string]model.ConfirmedMeal{},
		inventory: map[string]model.InventoryItem{},
		cart:      map[string]model.CartItem{},
	}
}

func (db *memDB) id(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

// ---- users / tokens ----

type memUsers struct{ *memDB }

func (s memUsers) Create(_ context.Context, email, password string, cost int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return "", repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := s.id("user")
	s.users[id] = model.User{ID: id, Email: email, PasswordHash: hash, IsActive: true}
	return id, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (s memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return model.User{}, sql.ErrNoRows
}

func (s memUsers) FindOrCreateOAuth(_ context.Context, provider, subject, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.OAuthProvider == provider && u.OAuthSubject == subject {
			return u, nil
		}
	}
	id := s.id("user")
	u := model.User{ID: id, Email: email, OAuthProvider: provider, OAuthSubject: subject, IsActive: true}
	s.users[id] = u
	return u, nil
}

type memTokens struct{ *memDB }

func (s memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[hash] = userID
	return nil
}

func (s memTokens) Consume(_ context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.refresh[hash]
	if !ok {
		return "", repository.ErrNotFound
	}
	delete(s.refresh, hash)
	return uid, nil
}

func (s memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, uid := range s.refresh {
		if uid == userID {
			delete(s.refresh, h)
		}
	}
	return nil
}

// ---- profiles ----

type memProfiles struct{ *memDB }

func (s memProfiles) GetByID(_ context.Context, id string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func (s memProfiles) Save(_ context.Context, p *model.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[p.ID]
	if ok && cur.FamilyCode != p.FamilyCode {
		return false, repository.ErrFamilyLocked
	}
	s.profiles[p.ID] = *p
	return !ok, nil
}

func (s memProfiles) UpdateLanguage(_ context.Context, id string, lang model.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Language = lang
	s.profiles[id] = p
	return nil
}

// ---- meals ----

type memMeals struct{ *memDB }

func (s memMeals) ListByFamily(_ context.Context, family string) ([]model.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Meal{}
	for _, m := range s.meals {
		if m.FamilyCode == family {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memMeals) GetByID(_ context.Context, family, id string) (*model.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meals[id]; ok && m.FamilyCode == family {
		return &m, nil
	}
	return nil, repository.ErrNotFound
}

func (s memMeals) Create(_ context.Context, m *model.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id("meal")
	m.CreatedAt = time.Now().UTC()
	s.meals[m.ID] = *m
	return nil
}

func (s memMeals) CountByFamily(ctx context.Context, family string) (int, error) {
	ms, _ := s.ListByFamily(ctx, family)
	return len(ms), nil
}

// ---- plan ----

type memSelections struct{ *memDB }

func (s memSelections) ListByFamilyDate(_ context.Context, family, date string) ([]model.MealSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.MealSelection{}
	for _, v := range s.sels {
		if v.FamilyCode == family && v.MealDate == date {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s memSelections) Upsert(_ context.Context, sel *model.MealSelection) (*model.MealSelection, model.ChangeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sel.UserID + "|" + sel.MealDate + "|" + string(sel.Slot)
	kind := model.ChangeUpdate
	if cur, ok := s.sels[key]; ok {
		sel.ID = cur.ID
	} else {
		sel.ID = s.id("sel")
		kind = model.ChangeInsert
	}
	s.sels[key] = *sel
	out := *sel
	return &out, kind, nil
}

type memConfirmed struct{ *memDB }

func (s memConfirmed) ListByFamilyDate(_ context.Context, family, date string) ([]model.ConfirmedMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ConfirmedMeal{}
	for _, v := range s.confirmed {
		if v.FamilyCode == family && v.MealDate == date {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s memConfirmed) Upsert(_ context.Context, c *model.ConfirmedMeal) (*model.ConfirmedMeal, model.ChangeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.FamilyCode + "|" + c.MealDate + "|" + string(c.Slot)
	kind := model.ChangeUpdate
	if cur, ok := s.confirmed[key]; ok {
		c.ID = cur.ID
	} else {
		c.ID = s.id("conf")
		kind = model.ChangeInsert
	}
	s.confirmed[key] = *c
	out := *c
	return &out, kind, nil
}

func (s memConfirmed) UpdateReadyAt(_ context.Context, family, id, readyAt string) (*model.ConfirmedMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.confirmed {
		if v.ID == id && v.FamilyCode == family {
			v.ReadyAt = readyAt
			s.confirmed[k] = v
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ---- pantry ----

type memInventory struct{ *memDB }

func (s memInventory) ListByFamily(_ context.Context, family string) ([]model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.InventoryItem{}
	for _, v := range s.inventory {
		if v.FamilyCode == family {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (s memInventory) Create(_ context.Context, it *model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.ID = s.id("inv")
	it.Quantity = model.ClampQuantity(it.Quantity)
	if it.Unit == "" {
		it.Unit = model.DefaultUnit
	}
	s.inventory[it.ID] = *it
	return nil
}

func (s memInventory) update(family, id string, f func(*model.InventoryItem)) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.inventory[id]
	if !ok || it.FamilyCode != family {
		return nil, repository.ErrNotFound
	}
	f(&it)
	s.inventory[id] = it
	return &it, nil
}

func (s memInventory) SetQuantity(_ context.Context, family, id string, qty int) (*model.InventoryItem, error) {
	return s.update(family, id, func(it *model.InventoryItem) { it.Quantity = model.ClampQuantity(qty) })
}

func (s memInventory) AdjustQuantity(_ context.Context, family, id string, delta int) (*model.InventoryItem, error) {
	return s.update(family, id, func(it *model.InventoryItem) { it.Quantity = model.ClampQuantity(it.Quantity + delta) })
}

func (s memInventory) Delete(_ context.Context, family, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.inventory[id]; !ok || it.FamilyCode != family {
		return repository.ErrNotFound
	}
	delete(s.inventory, id)
	return nil
}

type memCart struct{ *memDB }

func (s memCart) ListByFamily(_ context.Context, family string) ([]model.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.CartItem{}
	for _, v := range s.cart {
		if v.FamilyCode == family {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memCart) Create(_ context.Context, c *model.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id("cart")
	if c.Quantity < 1 {
		c.Quantity = 1
	}
	c.CreatedAt = time.Now().UTC()
	s.cart[c.ID] = *c
	return nil
}

func (s memCart) Toggle(_ context.Context, family, id string) (*model.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cart[id]
	if !ok || c.FamilyCode != family {
		return nil, repository.ErrNotFound
	}
	c.IsPurchased = !c.IsPurchased
	s.cart[id] = c
	return &c, nil
}

func (s memCart) Delete(_ context.Context, family, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cart[id]; !ok || c.FamilyCode != family {
		return repository.ErrNotFound
	}
	delete(s.cart, id)
	return nil
}

type memChat struct{ *memDB }

func (s memChat) ListByFamily(_ context.Context, family string, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ChatMessage{}
	for _, m := range s.chat {
		if m.FamilyCode == family {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s memChat) Create(_ context.Context, m *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id("msg")
	m.CreatedAt = time.Now().UTC()
	s.chat = append(s.chat, *m)
	return nil
}
