// Package syncer coordinates the client: session bootstrap, the sync loop,
// the realtime trigger, offline hydration and the user's mutations. It
// owns the application state and is the only writer of it.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/family-kitchen/internal/backend"
	"github.com/iliyamo/family-kitchen/internal/localstore"
	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/state"
)

var (
	// ErrNotAuthenticated is returned by actions that need a signed-in
	// member. Nothing is written when it is returned.
	ErrNotAuthenticated = errors.New("syncer: not signed in")
	// ErrProfileSetupRequired means the session is valid but signup has not
	// been completed, so there is no family to sync.
	ErrProfileSetupRequired = errors.New("syncer: profile setup required")
)

// DefaultSyncTimeout bounds one sync run.
const DefaultSyncTimeout = 15 * time.Second

// Realtime subscribe retry backoff.
const (
	retryMin = time.Second
	retryMax = 30 * time.Second
)

// Store is the remote data API.
type Store interface {
	ListMeals(ctx context.Context, family string) ([]model.Meal, error)
	ListInventory(ctx context.Context, family string) ([]model.InventoryItem, error)
	ListSelections(ctx context.Context, family, date string) ([]model.MealSelection, error)
	ListConfirmed(ctx context.Context, family, date string) ([]model.ConfirmedMeal, error)
	ListCart(ctx context.Context, family string) ([]model.CartItem, error)
	ListMessages(ctx context.Context, family string) ([]model.ChatMessage, error)

	CreateMeal(ctx context.Context, family string, m model.Meal) (*model.Meal, error)
	SelectMeal(ctx context.Context, family string, req backend.PlanRequest) (*model.MealSelection, error)
	ConfirmMeal(ctx context.Context, family string, req backend.PlanRequest) (*model.ConfirmedMeal, error)
	UpdateReadyAt(ctx context.Context, family, id, readyAt string) (*model.ConfirmedMeal, error)
	AddInventory(ctx context.Context, family, name string, qty int, unit string) (*model.InventoryItem, error)
	SetInventoryQuantity(ctx context.Context, family, id string, qty int) (*model.InventoryItem, error)
	AdjustInventory(ctx context.Context, family, id string, delta int) (*model.InventoryItem, error)
	DeleteInventory(ctx context.Context, family, id string) error
	AddCart(ctx context.Context, family, name string, qty int) (*model.CartItem, error)
	ToggleCart(ctx context.Context, family, id string) (*model.CartItem, error)
	DeleteCart(ctx context.Context, family, id string) error
	SendMessage(ctx context.Context, family, text string) (*model.ChatMessage, error)
}

// Auth is the identity side of the API.
type Auth interface {
	Session(ctx context.Context) (*backend.Session, error)
	Profile(ctx context.Context) (*model.Profile, error)
	SaveProfile(ctx context.Context, p model.Profile) (*model.Profile, error)
	UpdateLanguage(ctx context.Context, lang model.Language) error
	SignOut(ctx context.Context) error
}

// Feed delivers change notifications for a family.
type Feed interface {
	Subscribe(ctx context.Context, family string, onChange func(model.ChangeEvent)) (backend.Subscription, error)
}

// Mirror is the offline copy read at start and written after syncs.
type Mirror interface {
	LoadMirror(ctx context.Context) (*localstore.Mirror, error)
	SaveMirror(ctx context.Context, m localstore.Mirror) error
	ClearMirror(ctx context.Context) error
}

// Options tune a Coordinator. Every field is optional.
type Options struct {
	SyncTimeout time.Duration
	Logger      *zap.Logger
	// OnSync is called with a fresh snapshot after every completed sync run.
	OnSync func(state.Snapshot)
}

// Coordinator drives one client session.
type Coordinator struct {
	store  Store
	auth   Auth
	feed   Feed
	mirror Mirror
	state  *state.State

	log     *zap.Logger
	timeout time.Duration
	onSync  func(state.Snapshot)

	inFlight atomic.Bool
	pending  atomic.Bool // a Sync was skipped while one ran

	// bg outlives individual calls; realtime-triggered syncs run on it.
	bg     context.Context
	cancel context.CancelFunc

	subMu     sync.Mutex
	sub       backend.Subscription
	subFamily string
	subCancel context.CancelFunc
	retryMin  time.Duration
}

// New wires a coordinator. feed and mirror may be nil.
func New(store Store, auth Auth, feed Feed, mirror Mirror, opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.SyncTimeout
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:    store,
		auth:     auth,
		feed:     feed,
		mirror:   mirror,
		state:    state.New(),
		log:      log.Named("syncer"),
		timeout:  timeout,
		onSync:   opts.OnSync,
		bg:       bg,
		cancel:   cancel,
		retryMin: retryMin,
	}
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() state.Snapshot { return c.state.Snapshot() }

// Bootstrap resumes an existing session: it loads the caller's profile,
// seeds the language from it, runs a first sync and starts the realtime
// trigger. Without a session it returns ErrNotAuthenticated; with a
// session but no profile, ErrProfileSetupRequired.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	sess, err := c.auth.Session(ctx)
	if err != nil {
		c.log.Warn("session lookup failed", zap.Error(err))
		return err
	}
	if sess == nil {
		return ErrNotAuthenticated
	}
	p, err := c.auth.Profile(ctx)
	switch {
	case errors.Is(err, backend.ErrNoProfile):
		return ErrProfileSetupRequired
	case errors.Is(err, backend.ErrNoSession):
		return ErrNotAuthenticated
	case err != nil:
		c.log.Warn("profile lookup failed", zap.Error(err))
		return err
	}
	c.start(ctx, p)
	return nil
}

// CompleteSetup saves the signup profile (joining a family) and starts
// syncing it.
func (c *Coordinator) CompleteSetup(ctx context.Context, p model.Profile) (*model.Profile, error) {
	saved, err := c.auth.SaveProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	c.start(ctx, saved)
	return saved, nil
}

func (c *Coordinator) start(ctx context.Context, p *model.Profile) {
	c.state.SetProfile(p)
	c.Sync(ctx)
	c.watch(p.FamilyCode)
}

// Sync re-reads all six collections of the caller's family. It reports
// whether this call ran the sync: without a family it returns false at
// once. While another run is in flight it returns false without touching
// the network and leaves a request behind; the running call then syncs
// once more, so a date change or event that lands mid-run is never lost.
//
// Each collection is applied independently. One that fails keeps its
// previous contents and the failure is only logged.
func (c *Coordinator) Sync(ctx context.Context) bool {
	if c.state.FamilyCode() == "" {
		return false
	}
	if !c.acquire() {
		c.log.Debug("sync already running, queued one more")
		return false
	}
	for {
		c.pending.Store(false)
		c.syncOnce(ctx)
		c.inFlight.Store(false)
		if !c.pending.Load() || ctx.Err() != nil || !c.inFlight.CompareAndSwap(false, true) {
			return true
		}
	}
}

func (c *Coordinator) acquire() bool {
	if c.inFlight.CompareAndSwap(false, true) {
		return true
	}
	c.pending.Store(true)
	// The running call may have checked for requests just before ours.
	return c.inFlight.CompareAndSwap(false, true)
}

func (c *Coordinator) syncOnce(ctx context.Context) {
	family := c.state.FamilyCode()
	if family == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	c.state.SetLoading(true)
	defer c.state.SetLoading(false)

	date := c.state.Date()
	u := state.Update{Family: family, Date: date}
	var (
		mu    sync.Mutex
		fresh = map[state.Collection]bool{}
		g     errgroup.Group
	)
	run := func(name state.Collection, fetch func(context.Context) error) {
		g.Go(func() error {
			if err := fetch(ctx); err != nil {
				c.log.Warn("sync read failed", zap.String("collection", string(name)),
					zap.String("family", family), zap.Error(err))
				return nil
			}
			mu.Lock()
			fresh[name] = true
			mu.Unlock()
			return nil
		})
	}
	run(state.Meals, func(ctx context.Context) (err error) {
		u.Meals, err = c.store.ListMeals(ctx, family)
		return err
	})
	run(state.Inventory, func(ctx context.Context) (err error) {
		u.Inventory, err = c.store.ListInventory(ctx, family)
		return err
	})
	run(state.Selections, func(ctx context.Context) (err error) {
		u.Selections, err = c.store.ListSelections(ctx, family, date)
		return err
	})
	run(state.Confirmed, func(ctx context.Context) (err error) {
		u.Confirmed, err = c.store.ListConfirmed(ctx, family, date)
		return err
	})
	run(state.Cart, func(ctx context.Context) (err error) {
		u.Cart, err = c.store.ListCart(ctx, family)
		return err
	})
	run(state.Messages, func(ctx context.Context) (err error) {
		u.Messages, err = c.store.ListMessages(ctx, family)
		return err
	})
	_ = g.Wait()
	u.Fresh = fresh

	if !c.state.Apply(u) {
		c.log.Info("discarding sync for a family or date no longer shown",
			zap.String("family", family), zap.String("date", date))
		return
	}
	c.writeMirror(ctx, fresh)
	if c.onSync != nil {
		c.onSync(c.state.Snapshot())
	}
}

func (c *Coordinator) writeMirror(ctx context.Context, fresh map[state.Collection]bool) {
	if c.mirror == nil {
		return
	}
	refreshed := false
	for _, col := range state.Mirrored {
		refreshed = refreshed || fresh[col]
	}
	if !refreshed {
		return
	}
	snap := c.state.Snapshot()
	err := c.mirror.SaveMirror(ctx, localstore.Mirror{
		Meals:          snap.Meals,
		Inventory:      snap.Inventory,
		Cart:           snap.Cart,
		ConfirmedMeals: snap.Confirmed,
	})
	if err != nil {
		c.log.Warn("mirror write failed", zap.Error(err))
	}
}

// Hydrate paints the offline mirror, if one exists, before the first sync
// lands. A corrupt mirror is logged and treated as absent.
func (c *Coordinator) Hydrate(ctx context.Context) bool {
	if c.mirror == nil {
		return false
	}
	m, err := c.mirror.LoadMirror(ctx)
	if err != nil {
		c.log.Warn("offline mirror unreadable, ignoring", zap.Error(err))
		return false
	}
	if m == nil {
		return false
	}
	return c.state.Hydrate(m.Meals, m.Inventory, m.Cart, m.ConfirmedMeals)
}

// watch keeps exactly one change subscription, for family. Any event,
// whatever its table, runs a full sync. A failed subscribe is retried in
// the background until it succeeds or the family changes.
func (c *Coordinator) watch(family string) {
	if c.feed == nil || family == "" {
		return
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subFamily == family {
		return
	}
	c.stopLocked()
	ctx, cancel := context.WithCancel(c.bg)
	c.subFamily, c.subCancel = family, cancel

	sub, err := c.feed.Subscribe(ctx, family, c.onChange)
	if err != nil {
		c.log.Warn("realtime subscribe failed, retrying", zap.String("family", family), zap.Error(err))
		go c.resubscribe(ctx, family)
		return
	}
	c.sub = sub
}

func (c *Coordinator) onChange(model.ChangeEvent) { c.Sync(c.bg) }

func (c *Coordinator) resubscribe(ctx context.Context, family string) {
	delay := c.retryMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		sub, err := c.feed.Subscribe(ctx, family, c.onChange)
		if err != nil {
			delay = min(delay*2, retryMax)
			c.log.Warn("realtime subscribe failed", zap.String("family", family),
				zap.Duration("retry_in", delay), zap.Error(err))
			continue
		}
		c.subMu.Lock()
		if ctx.Err() != nil || c.subFamily != family {
			c.subMu.Unlock()
			sub.Close()
			return
		}
		c.sub = sub
		c.subMu.Unlock()
		c.log.Info("realtime subscribed", zap.String("family", family))
		// Changes made while unsubscribed were never announced.
		c.Sync(c.bg)
		return
	}
}

func (c *Coordinator) stopLocked() {
	if c.subCancel != nil {
		c.subCancel()
	}
	if c.sub != nil {
		c.sub.Close()
	}
	c.sub, c.subFamily, c.subCancel = nil, "", nil
}

func (c *Coordinator) stopRealtime() {
	c.subMu.Lock()
	c.stopLocked()
	c.subMu.Unlock()
}

// Watching reports the family the realtime trigger is subscribed to, or ""
// while there is no live subscription.
func (c *Coordinator) Watching() string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.sub == nil {
		return ""
	}
	return c.subFamily
}

// SignOut stops realtime, signs out remotely, then clears the state and
// the offline mirror. Local data is cleared even if the remote call fails.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.stopRealtime()
	err := c.auth.SignOut(ctx)
	if err != nil {
		c.log.Warn("remote sign-out failed", zap.Error(err))
	}
	c.state.Reset()
	if c.mirror != nil {
		if merr := c.mirror.ClearMirror(ctx); merr != nil {
			c.log.Warn("mirror clear failed", zap.Error(merr))
		}
	}
	return err
}

// SetDate changes the day the date-scoped collections are read for.
func (c *Coordinator) SetDate(ctx context.Context, date string) error {
	d, ok := model.ParseDay(date)
	if !ok {
		return errors.New("date must be YYYY-MM-DD")
	}
	c.state.SetDate(d)
	c.Sync(ctx)
	return nil
}

// SetLanguage stores the language on the profile and applies it.
func (c *Coordinator) SetLanguage(ctx context.Context, lang model.Language) error {
	if !lang.Valid() {
		return errors.New("language must be en or ar")
	}
	if c.state.Profile() == nil {
		return ErrNotAuthenticated
	}
	if err := c.auth.UpdateLanguage(ctx, lang); err != nil {
		return err
	}
	c.state.SetLanguage(lang)
	return nil
}

// Close stops the realtime trigger and any sync it started.
func (c *Coordinator) Close() {
	c.cancel()
	c.stopRealtime()
}
