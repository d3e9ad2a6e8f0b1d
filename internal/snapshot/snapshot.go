// Package snapshot keeps an immutable, atomically swapped view of all
// flag definitions for one environment. Request handlers read the
// current snapshot without locking; admin mutations rebuild it and
// notify stream subscribers.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/store"
)

// Snapshot is one immutable view of the flag universe. Handlers must
// never mutate a snapshot after loading it.
type Snapshot struct {
	ETag         string                      `json:"etag"`
	Environment  string                      `json:"environment"`
	Flags        map[string]store.FlagRecord `json:"flags"`
	KillSwitches []flags.KillSwitch          `json:"kill_switches"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// Flag returns the record for a key, or nil when the snapshot does not
// contain it.
func (s *Snapshot) Flag(key string) *store.FlagRecord {
	if rec, ok := s.Flags[key]; ok {
		return &rec
	}
	return nil
}

// Cache holds the current snapshot and the subscriber registry.
type Cache struct {
	env     string
	current atomic.Pointer[Snapshot]
	notify  notifier
}

// NewCache creates an empty cache for one environment. Load returns an
// empty snapshot until the first Rebuild.
func NewCache(env string) *Cache {
	c := &Cache{env: env}
	c.current.Store(&Snapshot{
		Environment: env,
		Flags:       map[string]store.FlagRecord{},
		UpdatedAt:   time.Now().UTC(),
	})
	return c
}

// Load returns the current snapshot. Never nil.
func (c *Cache) Load() *Snapshot {
	return c.current.Load()
}

// Rebuild reads the full flag universe from the store and swaps in a
// fresh snapshot.
func (c *Cache) Rebuild(ctx context.Context, s store.Store) (*Snapshot, error) {
	recs, err := s.ListFlags(ctx, c.env)
	if err != nil {
		return nil, fmt.Errorf("rebuild snapshot: %w", err)
	}
	switches, err := s.ListKillSwitches(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild snapshot: %w", err)
	}

	byKey := make(map[string]store.FlagRecord, len(recs))
	for _, rec := range recs {
		byKey[rec.Flag.Key] = rec
	}

	snap := &Snapshot{
		ETag:         computeETag(byKey, switches),
		Environment:  c.env,
		Flags:        byKey,
		KillSwitches: switches,
		UpdatedAt:    time.Now().UTC(),
	}
	c.current.Store(snap)
	return snap, nil
}

func computeETag(recs map[string]store.FlagRecord, switches []flags.KillSwitch) string {
	blob, _ := json.Marshal(struct {
		Flags        map[string]store.FlagRecord `json:"flags"`
		KillSwitches []flags.KillSwitch          `json:"kill_switches"`
	}{recs, switches})
	sum := sha256.Sum256(blob)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}
