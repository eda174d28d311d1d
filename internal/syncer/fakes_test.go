package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iliyamo/family-kitchen/internal/backend"
	"github.com/iliyamo/family-kitchen/internal/localstore"
	"github.com/iliyamo/family-kitchen/internal/model"
)

var errDown = errors.New("network down")

// world is the shared server-side data of every fake client.
type world struct {
	mu         sync.Mutex
	seq        int
	meals      []model.Meal
	selections []model.MealSelection
	confirmed  []model.ConfirmedMeal
	inventory  []model.InventoryItem
	cart       []model.CartItem
	messages   []model.ChatMessage
	profiles   map[string]model.Profile
}

func newWorld() *world { return &world{profiles: map[string]model.Profile{}} }

func (w *world) id(p string) string {
	w.seq++
	return fmt.Sprintf("%s%d", p, w.seq)
}

func filter[T any](rows []T, keep func(T) bool) []T {
	out := []T{}
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// fakeClient is one member's connection to the world.
type fakeClient struct {
	w      *world
	userID string

	signedOut atomic.Bool
	reads     atomic.Int32
	writes    atomic.Int32

	mu       sync.Mutex
	failing  map[string]bool
	gate     chan struct{} // when set, ListMeals blocks on it
	started  chan struct{} // receives once per gated ListMeals call
	onChange func(model.ChangeEvent)
	subs     []string
	closed   int
	subFails int // Subscribe fails this many more times
}

func newFakeClient(w *world, userID string) *fakeClient {
	return &fakeClient{w: w, userID: userID, failing: map[string]bool{}}
}

func (f *fakeClient) fail(name string, on bool) {
	f.mu.Lock()
	f.failing[name] = on
	f.mu.Unlock()
}

func (f *fakeClient) check(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[name] {
		return errDown
	}
	return nil
}

// ---- Auth ----

func (f *fakeClient) Session(context.Context) (*backend.Session, error) {
	if f.signedOut.Load() || f.userID == "" {
		return nil, nil
	}
	return &backend.Session{UserID: f.userID}, nil
}

func (f *fakeClient) Profile(context.Context) (*model.Profile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	p, ok := f.w.profiles[f.userID]
	if !ok {
		return nil, backend.ErrNoProfile
	}
	return &p, nil
}

func (f *fakeClient) SaveProfile(_ context.Context, p model.Profile) (*model.Profile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	p.ID = f.userID
	p.FamilyCode = model.NormalizeFamilyCode(p.FamilyCode)
	f.w.profiles[f.userID] = p
	return &p, nil
}

func (f *fakeClient) UpdateLanguage(_ context.Context, lang model.Language) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	p := f.w.profiles[f.userID]
	p.Language = lang
	f.w.profiles[f.userID] = p
	return nil
}

func (f *fakeClient) SignOut(context.Context) error {
	f.signedOut.Store(true)
	return nil
}

// ---- Feed ----

type fakeSub struct{ f *fakeClient }

func (s fakeSub) Close() {
	s.f.mu.Lock()
	s.f.closed++
	s.f.onChange = nil
	s.f.mu.Unlock()
}

func (f *fakeClient) Subscribe(_ context.Context, family string, onChange func(model.ChangeEvent)) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subFails > 0 {
		f.subFails--
		return nil, errDown
	}
	f.subs = append(f.subs, family)
	f.onChange = onChange
	return fakeSub{f}, nil
}

func (f *fakeClient) gateMeals() (gate chan struct{}, started chan struct{}) {
	gate, started = make(chan struct{}), make(chan struct{}, 1)
	f.mu.Lock()
	f.gate, f.started = gate, started
	f.mu.Unlock()
	return gate, started
}

func (f *fakeClient) emit(ev model.ChangeEvent) {
	f.mu.Lock()
	h := f.onChange
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// ---- Store reads ----

func (f *fakeClient) ListMeals(ctx context.Context, family string) ([]model.Meal, error) {
	f.reads.Add(1)
	f.mu.Lock()
	gate, started := f.gate, f.started
	f.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.check("meals"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return filter(f.w.meals, func(m model.Meal) bool { return m.FamilyCode == family }), nil
}

func (f *fakeClient) ListInventory(_ context.Context, family string) ([]model.InventoryItem, error) {
	f.reads.Add(1)
	if err := f.check("inventory"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return filter(f.w.inventory, func(i model.InventoryItem) bool { return i.FamilyCode == family }), nil
}

func (f *fakeClient) ListSelections(_ context.Context, family, date string) ([]model.MealSelection, error) {
	f.reads.Add(1)
	if err := f.check("selections"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return filter(f.w.selections, func(s model.MealSelection) bool {
		return s.FamilyCode == family && s.MealDate == date
	}), nil
}

func (f *fakeClient) ListConfirmed(_ context.Context, family, date string) ([]model.ConfirmedMeal, error) {
	f.reads.Add(1)
	if err := f.check("confirmed"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return filter(f.w.confirmed, func(c model.ConfirmedMeal) bool {
		return c.FamilyCode == family && c.MealDate == date
	}), nil
}

func (f *fakeClient) ListCart(_ context.Context, family string) ([]model.CartItem, error) {
	f.reads.Add(1)
	if err := f.check("cart"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return filter(f.w.cart, func(c model.CartItem) bool { return c.FamilyCode == family }), nil
}

func (f *fakeClient) ListMessages(_ context.Context, family string) ([]model.ChatMessage, error) {
	f.reads.Add(1)
	if err := f.check("messages"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return filter(f.w.messages, func(m model.ChatMessage) bool { return m.FamilyCode == family }), nil
}

// ---- Store writes ----

func (f *fakeClient) me() model.Profile { return f.w.profiles[f.userID] }

func (f *fakeClient) CreateMeal(_ context.Context, family string, m model.Meal) (*model.Meal, error) {
	f.writes.Add(1)
	if err := f.check("create meal"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	m.ID, m.FamilyCode, m.CreatedBy = f.w.id("meal"), family, f.userID
	f.w.meals = append(f.w.meals, m)
	return &m, nil
}

func (f *fakeClient) mealSnap(family, id string) (*model.MealSnapshot, error) {
	for _, m := range f.w.meals {
		if m.ID == id && m.FamilyCode == family {
			return m.Snapshot(), nil
		}
	}
	return nil, &backend.APIError{Status: 404, Message: "meal not found"}
}

func (f *fakeClient) SelectMeal(_ context.Context, family string, req backend.PlanRequest) (*model.MealSelection, error) {
	f.writes.Add(1)
	if err := f.check("select"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	snap, err := f.mealSnap(family, req.MealID)
	if err != nil {
		return nil, err
	}
	me := f.me()
	row := model.MealSelection{
		UserID: f.userID, MealID: req.MealID, MealDate: req.MealDate, Slot: req.Slot,
		FamilyCode: family, ProfileData: me.Snapshot(), MealData: snap,
	}
	for i, s := range f.w.selections {
		if s.UserID == f.userID && s.MealDate == req.MealDate && s.Slot == req.Slot {
			row.ID = s.ID
			f.w.selections[i] = row
			return &row, nil
		}
	}
	row.ID = f.w.id("sel")
	f.w.selections = append(f.w.selections, row)
	return &row, nil
}

func (f *fakeClient) ConfirmMeal(_ context.Context, family string, req backend.PlanRequest) (*model.ConfirmedMeal, error) {
	f.writes.Add(1)
	if err := f.check("confirm"); err != nil {
		return nil, err
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if !f.me().Role.CanConfirm() {
		return nil, &backend.APIError{Status: 403, Message: "forbidden"}
	}
	snap, err := f.mealSnap(family, req.MealID)
	if err != nil {
		return nil, err
	}
	row := model.ConfirmedMeal{
		MealID: req.MealID, MealDate: req.MealDate, Slot: req.Slot, ReadyAt: req.ReadyAt,
		FamilyCode: family, MealData: snap,
	}
	for i, c := range f.w.confirmed {
		if c.FamilyCode == family && c.MealDate == req.MealDate && c.Slot == req.Slot {
			row.ID = c.ID
			f.w.confirmed[i] = row
			return &row, nil
		}
	}
	row.ID = f.w.id("conf")
	f.w.confirmed = append(f.w.confirmed, row)
	return &row, nil
}

func (f *fakeClient) UpdateReadyAt(_ context.Context, family, id, readyAt string) (*model.ConfirmedMeal, error) {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for i, c := range f.w.confirmed {
		if c.ID == id && c.FamilyCode == family {
			f.w.confirmed[i].ReadyAt = readyAt
			out := f.w.confirmed[i]
			return &out, nil
		}
	}
	return nil, &backend.APIError{Status: 404}
}

func (f *fakeClient) AddInventory(_ context.Context, family, name string, qty int, unit string) (*model.InventoryItem, error) {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	it := model.InventoryItem{ID: f.w.id("inv"), ItemName: name, Quantity: model.ClampQuantity(qty), Unit: unit, FamilyCode: family}
	f.w.inventory = append(f.w.inventory, it)
	return &it, nil
}

func (f *fakeClient) inventoryOp(family, id string, op func(*model.InventoryItem)) (*model.InventoryItem, error) {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for i := range f.w.inventory {
		if it := &f.w.inventory[i]; it.ID == id && it.FamilyCode == family {
			op(it)
			out := *it
			return &out, nil
		}
	}
	return nil, &backend.APIError{Status: 404}
}

// SetInventoryQuantity stores what it is sent, so tests see whether the
// client clamped.
func (f *fakeClient) SetInventoryQuantity(_ context.Context, family, id string, qty int) (*model.InventoryItem, error) {
	return f.inventoryOp(family, id, func(it *model.InventoryItem) { it.Quantity = qty })
}

func (f *fakeClient) AdjustInventory(_ context.Context, family, id string, delta int) (*model.InventoryItem, error) {
	return f.inventoryOp(family, id, func(it *model.InventoryItem) { it.Quantity = model.ClampQuantity(it.Quantity + delta) })
}

func (f *fakeClient) DeleteInventory(_ context.Context, family, id string) error {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.inventory = filter(f.w.inventory, func(it model.InventoryItem) bool { return !(it.ID == id && it.FamilyCode == family) })
	return nil
}

func (f *fakeClient) AddCart(_ context.Context, family, name string, qty int) (*model.CartItem, error) {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	c := model.CartItem{ID: f.w.id("cart"), ItemName: name, Quantity: qty, FamilyCode: family}
	f.w.cart = append(f.w.cart, c)
	return &c, nil
}

func (f *fakeClient) ToggleCart(_ context.Context, family, id string) (*model.CartItem, error) {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for i := range f.w.cart {
		if c := &f.w.cart[i]; c.ID == id && c.FamilyCode == family {
			c.IsPurchased = !c.IsPurchased
			out := *c
			return &out, nil
		}
	}
	return nil, &backend.APIError{Status: 404}
}

func (f *fakeClient) DeleteCart(_ context.Context, family, id string) error {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.cart = filter(f.w.cart, func(c model.CartItem) bool { return !(c.ID == id && c.FamilyCode == family) })
	return nil
}

func (f *fakeClient) SendMessage(_ context.Context, family, text string) (*model.ChatMessage, error) {
	f.writes.Add(1)
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	me := f.me()
	m := model.ChatMessage{ID: f.w.id("msg"), SenderID: f.userID, Message: text, FamilyCode: family, ProfileData: me.Snapshot()}
	f.w.messages = append(f.w.messages, m)
	return &m, nil
}

// memMirror is an in-memory offline mirror.
type memMirror struct {
	mu      sync.Mutex
	m       *localstore.Mirror
	corrupt bool
	saves   int
}

func (m *memMirror) LoadMirror(context.Context) (*localstore.Mirror, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.corrupt {
		return nil, localstore.ErrCorrupt
	}
	if m.m == nil {
		return nil, nil
	}
	cp := *m.m
	return &cp, nil
}

func (m *memMirror) SaveMirror(_ context.Context, v localstore.Mirror) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m = &v
	m.saves++
	return nil
}

func (m *memMirror) ClearMirror(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m = nil
	return nil
}
