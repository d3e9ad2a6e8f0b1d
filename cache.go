package flagdeck

import (
	"sort"
	"sync"

	"github.com/flagdeck/flagdeck/events"
)

// FlagState is the locally cached view of one flag: just enough to
// answer from the cache while the server is unreachable.
type FlagState struct {
	Key            string
	ID             string
	Enabled        bool
	DefaultVariant string
	DefaultValue   any
	Archived       bool
}

// flagCache holds per-flag state and the active kill switch set. The
// streaming synchronizer is the only writer; evaluation callers are
// readers. It never performs network I/O.
type flagCache struct {
	mu          sync.RWMutex
	flags       map[string]FlagState
	switches    map[string][]string
	initialized bool
}

func newFlagCache() *flagCache {
	return &flagCache{
		flags:    make(map[string]FlagState),
		switches: make(map[string][]string),
	}
}

// Initialize replaces all cache contents. Used at startup and when a
// streaming init event arrives after a reconnect.
func (fc *flagCache) Initialize(flagStates []FlagState, killSwitches []events.KillSwitchSnapshot) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.flags = make(map[string]FlagState, len(flagStates))
	for _, fs := range flagStates {
		fc.flags[fs.Key] = fs
	}
	fc.switches = make(map[string][]string, len(killSwitches))
	for _, ks := range killSwitches {
		fc.switches[ks.Key] = append([]string(nil), ks.LinkedFlagKeys...)
	}
	fc.initialized = true
}

// Apply routes one streamed event to its handler. Init events replace
// the whole cache; everything else mutates incrementally. Events must
// be applied in receipt order.
func (fc *flagCache) Apply(e events.Event) {
	switch ev := e.(type) {
	case events.Init:
		states := make([]FlagState, 0, len(ev.Flags))
		for _, f := range ev.Flags {
			states = append(states, FlagState{
				Key:            f.Key,
				ID:             f.ID,
				Enabled:        f.Enabled,
				DefaultVariant: f.DefaultVariant,
				DefaultValue:   f.DefaultValue,
				Archived:       f.Archived,
			})
		}
		fc.Initialize(states, ev.KillSwitches)
	case events.FlagUpdated:
		fc.ApplyFlagUpdated(ev)
	case events.FlagArchived:
		fc.ApplyFlagArchived(ev)
	case events.FlagRestored:
		fc.ApplyFlagRestored(ev)
	case events.KillSwitchActivated:
		fc.ApplyKillSwitchActivated(ev)
	case events.KillSwitchDeactivated:
		fc.ApplyKillSwitchDeactivated(ev)
	case events.Heartbeat:
		// Keepalive only; the stream resets its inactivity timer.
	}
}

// ApplyFlagUpdated upserts the flag's cached state. Last write wins
// per flag key.
func (fc *flagCache) ApplyFlagUpdated(ev events.FlagUpdated) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	state := fc.flags[ev.FlagKey]
	state.Key = ev.FlagKey
	state.Enabled = ev.Enabled
	state.DefaultVariant = ev.DefaultVariant
	state.DefaultValue = ev.Value
	state.Archived = false
	fc.flags[ev.FlagKey] = state
}

func (fc *flagCache) ApplyFlagArchived(ev events.FlagArchived) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	state, ok := fc.flags[ev.FlagKey]
	if !ok {
		return
	}
	state.Archived = true
	fc.flags[ev.FlagKey] = state
}

func (fc *flagCache) ApplyFlagRestored(ev events.FlagRestored) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	state, ok := fc.flags[ev.FlagKey]
	if !ok {
		state.Key = ev.FlagKey
	}
	state.Archived = false
	state.Enabled = ev.Enabled
	fc.flags[ev.FlagKey] = state
}

func (fc *flagCache) ApplyKillSwitchActivated(ev events.KillSwitchActivated) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.switches[ev.Key] = append([]string(nil), ev.LinkedFlagKeys...)
}

func (fc *flagCache) ApplyKillSwitchDeactivated(ev events.KillSwitchDeactivated) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	delete(fc.switches, ev.Key)
}

// IsFlagKilled reports whether an active kill switch links the flag,
// returning the switch key. When several switches link the same flag,
// the lexically first switch key is reported so repeated calls agree.
func (fc *flagCache) IsFlagKilled(flagKey string) (string, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	keys := make([]string, 0, len(fc.switches))
	for k := range fc.switches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, linked := range fc.switches[k] {
			if linked == flagKey {
				return k, true
			}
		}
	}
	return "", false
}

// GetFlag returns the cached state for a flag key.
func (fc *flagCache) GetFlag(flagKey string) (FlagState, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	state, ok := fc.flags[flagKey]
	return state, ok
}

// Keys returns all cached flag keys in sorted order.
func (fc *flagCache) Keys() []string {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	keys := make([]string, 0, len(fc.flags))
	for k := range fc.flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsInitialized reports whether the cache has ever been seeded. Offline
// fallback is refused until it has.
func (fc *flagCache) IsInitialized() bool {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.initialized
}
