package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flagdeck/flagdeck/flags"
)

type envState struct {
	config   flags.FlagConfig
	strategy *flags.Strategy
}

// MemoryStore keeps all records in process memory. It backs local
// development and tests and is the target of YAML seed files.
type MemoryStore struct {
	mu       sync.RWMutex
	flags    map[string]flags.Flag
	states   map[string]map[string]envState // env -> flag key -> state
	switches map[string]flags.KillSwitch
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:    make(map[string]flags.Flag),
		states:   make(map[string]map[string]envState),
		switches: make(map[string]flags.KillSwitch),
	}
}

func (s *MemoryStore) ListFlags(_ context.Context, env string) ([]FlagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.flags))
	for k := range s.flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recs := make([]FlagRecord, 0, len(keys))
	for _, k := range keys {
		recs = append(recs, s.recordLocked(k, env))
	}
	return recs, nil
}

func (s *MemoryStore) GetFlag(_ context.Context, key, env string) (*FlagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.flags[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, key)
	}
	rec := s.recordLocked(key, env)
	return &rec, nil
}

// recordLocked resolves one flag for an environment. Caller holds mu.
func (s *MemoryStore) recordLocked(key, env string) FlagRecord {
	rec := FlagRecord{Flag: s.flags[key]}
	if st, ok := s.states[env][key]; ok {
		cfg := st.config
		rec.Config = &cfg
		if st.strategy != nil {
			strat := *st.strategy
			rec.Strategy = &strat
		}
	}
	return rec
}

func (s *MemoryStore) ListKillSwitches(_ context.Context) ([]flags.KillSwitch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.switches))
	for k := range s.switches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]flags.KillSwitch, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.switches[k])
	}
	return out, nil
}

func (s *MemoryStore) UpsertFlag(_ context.Context, env string, rec FlagRecord) error {
	if err := rec.Flag.Validate(); err != nil {
		return err
	}
	if rec.Strategy != nil {
		if err := rec.Strategy.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[rec.Flag.Key] = rec.Flag
	if rec.Config != nil {
		if s.states[env] == nil {
			s.states[env] = make(map[string]envState)
		}
		st := envState{config: *rec.Config}
		if rec.Strategy != nil {
			strat := *rec.Strategy
			st.strategy = &strat
		}
		s.states[env][rec.Flag.Key] = st
	}
	return nil
}

func (s *MemoryStore) SetFlagArchived(_ context.Context, key string, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flags[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlagNotFound, key)
	}
	if archived {
		now := time.Now().UTC()
		f.ArchivedAt = &now
	} else {
		f.ArchivedAt = nil
	}
	s.flags[key] = f
	return nil
}

func (s *MemoryStore) UpsertKillSwitch(_ context.Context, ks flags.KillSwitch) error {
	if ks.Key == "" {
		return fmt.Errorf("kill switch key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switches[ks.Key] = ks
	return nil
}

func (s *MemoryStore) Close() error { return nil }
