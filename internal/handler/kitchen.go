package handler

import (
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/changefeed"
)

// KitchenHandler serves the family-scoped collections under
// /v1/families/:code. Every route runs behind JWTAuth, LoadProfile and
// FamilyGuard, so the live caller profile is always present and its family
// code is the only one ever passed to the stores.
type KitchenHandler struct {
	Meals      MealStore
	Selections SelectionStore
	Confirmed  ConfirmedStore
	Inventory  InventoryStore
	Cart       CartStore
	Chat       ChatStore
	notify     notifier
}

// NewKitchenHandler panics if a store is missing. pub may be nil, which
// disables change events.
func NewKitchenHandler(meals MealStore, sel SelectionStore, conf ConfirmedStore, inv InventoryStore,
	cart CartStore, chat ChatStore, pub changefeed.Publisher, log *zap.Logger) *KitchenHandler {
	if meals == nil || sel == nil || conf == nil || inv == nil || cart == nil || chat == nil {
		panic("nil store passed to NewKitchenHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KitchenHandler{
		Meals:      meals,
		Selections: sel,
		Confirmed:  conf,
		Inventory:  inv,
		Cart:       cart,
		Chat:       chat,
		notify:     notifier{pub: pub, log: log.Named("kitchen")},
	}
}

// UseCache makes every write drop the family's cached reads before its
// change event is published.
func (h *KitchenHandler) UseCache(inv Invalidator) { h.notify.cache = inv }
