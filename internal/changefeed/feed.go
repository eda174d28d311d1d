// Package changefeed carries row-change notifications from the write path
// to every server instance. A write publishes one model.ChangeEvent after
// it commits; each instance runs a subscriber that hands events to local
// consumers (the SSE hub and the response cache).
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// Publisher emits change events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

// Handler consumes one delivered event.
type Handler func(ctx context.Context, ev model.ChangeEvent)

// Subscriber delivers events to h until ctx is cancelled.
type Subscriber interface {
	Run(ctx context.Context, h Handler) error
}

// Feed is a Publisher and Subscriber pair backed by one transport.
type Feed interface {
	Publisher
	Subscriber
	Close() error
}

// ErrInvalidEvent is returned for events that cannot be routed.
var ErrInvalidEvent = errors.New("changefeed: event has no family code or table")

// NewEvent stamps a change for family.
func NewEvent(family, table string, typ model.ChangeType, rowID string) model.ChangeEvent {
	return model.ChangeEvent{FamilyCode: family, Table: table, Type: typ, RowID: rowID, At: time.Now().UTC()}
}

func encode(ev model.ChangeEvent) ([]byte, error) {
	if ev.FamilyCode == "" || ev.Table == "" {
		return nil, ErrInvalidEvent
	}
	return json.Marshal(ev)
}

func decode(body []byte) (model.ChangeEvent, error) {
	var ev model.ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.FamilyCode == "" || ev.Table == "" {
		return ev, ErrInvalidEvent
	}
	return ev, nil
}

// Fanout combines several handlers into one.
func Fanout(hs ...Handler) Handler {
	return func(ctx context.Context, ev model.ChangeEvent) {
		for _, h := range hs {
			h(ctx, ev)
		}
	}
}

// Local is the in-process feed used by a single server instance and in
// tests. Publish calls every running subscriber synchronously.
type Local struct {
	mu   sync.RWMutex
	subs map[int]Handler
	next int
	log  *zap.Logger
}

func NewLocal(log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{subs: map[int]Handler{}, log: log.Named("changefeed")}
}

func (l *Local) Publish(ctx context.Context, ev model.ChangeEvent) error {
	if _, err := encode(ev); err != nil {
		return err
	}
	l.mu.RLock()
	hs := make([]Handler, 0, len(l.subs))
	for _, h := range l.subs {
		hs = append(hs, h)
	}
	l.mu.RUnlock()
	for _, h := range hs {
		h(ctx, ev)
	}
	return nil
}

func (l *Local) Run(ctx context.Context, h Handler) error {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = h
	l.mu.Unlock()
	l.log.Debug("local subscriber attached", zap.Int("id", id))

	<-ctx.Done()

	l.mu.Lock()
	delete(l.subs, id)
	l.mu.Unlock()
	return nil
}

func (l *Local) Close() error { return nil }
