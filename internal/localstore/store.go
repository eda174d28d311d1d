// Package localstore persists the client's offline mirror and session
// tokens as small JSON blobs, either in a directory or in Redis.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/family-kitchen/internal/backend"
	"github.com/iliyamo/family-kitchen/internal/model"
)

// Keys are version-tagged so a format change can simply start over.
const (
	MirrorKey  = "kitchen_cache_v1"
	SessionKey = "kitchen_session_v1"
)

var (
	// ErrMissing is returned by a Blob for an absent key.
	ErrMissing = errors.New("localstore: key not found")
	// ErrCorrupt wraps data that exists but cannot be decoded.
	ErrCorrupt = errors.New("localstore: corrupt data")
)

// Blob is a namespaced key/value store for opaque values.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Mirror is the offline copy of the four collections shown on cold start.
type Mirror struct {
	Meals          []model.Meal          `json:"meals"`
	Inventory      []model.InventoryItem `json:"inventory"`
	Cart           []model.CartItem      `json:"cart"`
	ConfirmedMeals []model.ConfirmedMeal `json:"confirmed_meals"`
	SavedAt        time.Time             `json:"saved_at"`
}

// Store reads and writes the mirror and the session on top of a Blob.
type Store struct {
	blob Blob
}

func New(blob Blob) *Store { return &Store{blob: blob} }

func (s *Store) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.blob.Get(ctx, key)
	if errors.Is(err, ErrMissing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.blob.Put(ctx, key, raw)
}

func (s *Store) remove(ctx context.Context, key string) error {
	if err := s.blob.Delete(ctx, key); err != nil && !errors.Is(err, ErrMissing) {
		return err
	}
	return nil
}

// LoadMirror returns nil, nil when no mirror has been written yet.
func (s *Store) LoadMirror(ctx context.Context) (*Mirror, error) {
	var m Mirror
	ok, err := s.load(ctx, MirrorKey, &m)
	if !ok || err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMirror overwrites the mirror, stamping SavedAt when unset.
func (s *Store) SaveMirror(ctx context.Context, m Mirror) error {
	if m.SavedAt.IsZero() {
		m.SavedAt = time.Now().UTC()
	}
	return s.save(ctx, MirrorKey, m)
}

func (s *Store) ClearMirror(ctx context.Context) error { return s.remove(ctx, MirrorKey) }

// LoadSession returns nil, nil when nobody has signed in on this device.
func (s *Store) LoadSession(ctx context.Context) (*backend.Session, error) {
	var sess backend.Session
	ok, err := s.load(ctx, SessionKey, &sess)
	if !ok || err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveSession persists sess; nil removes the stored session.
func (s *Store) SaveSession(ctx context.Context, sess *backend.Session) error {
	if sess == nil {
		return s.ClearSession(ctx)
	}
	return s.save(ctx, SessionKey, sess)
}

func (s *Store) ClearSession(ctx context.Context) error { return s.remove(ctx, SessionKey) }
