package store

import (
	"hash/fnv"
	"sync"

	"NetProfiler/internal/model"
)

const defaultShardCount = 256

// Outcome reports whether an upsert created a new profile or updated an
// existing one.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
)

// shard is a part of the sharded profile map, containing its own map
// and lock. Profiles held in the map are immutable: an upsert replaces
// the pointer rather than mutating the value, so a reader holding a
// *Profile never observes a half-merged record.
type shard struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
}

// Store is the correlation engine: a sharded mapping from client IP to
// merged Profile. It is read-optimized; readers take a per-shard read
// lock only long enough to copy out pointers.
type Store struct {
	shards     []*shard
	shardCount uint32
}

// New creates a profile store with the given number of shards.
func New(numShards uint32) *Store {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	s := &Store{
		shards:     make([]*shard, numShards),
		shardCount: numShards,
	}
	for i := range s.shards {
		s.shards[i] = &shard{profiles: make(map[string]*model.Profile)}
	}
	return s
}

// getShard returns the shard responsible for a key.
func (s *Store) getShard(key string) *shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return s.shards[hasher.Sum32()%s.shardCount]
}

// Upsert merges one fingerprint event into the profile for its key and
// returns the resulting profile. A field is only ever replaced by a
// newer event of the same kind; last_seen advances monotonically.
// Events are assumed validated; Upsert never fails on valid input.
func (s *Store) Upsert(ev model.FingerprintEvent) (Outcome, *model.Profile) {
	sh := s.getShard(ev.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var next model.Profile
	current, exists := sh.profiles[ev.Key]
	if exists {
		next = *current
		if ev.ObservedAt.After(next.LastSeen) {
			next.LastSeen = ev.ObservedAt
		}
	} else {
		next = model.Profile{ID: ev.Key, FirstSeen: ev.ObservedAt, LastSeen: ev.ObservedAt}
	}

	switch ev.Kind {
	case model.SourceTCP:
		next.TCP = ev.TCP
	case model.SourceHTTP:
		next.HTTP = ev.HTTP
	case model.SourceTLS:
		next.TLS = ev.TLS
	}

	sh.profiles[ev.Key] = &next

	if exists {
		return OutcomeUpdated, &next
	}
	return OutcomeCreated, &next
}

// Get returns the profile for a key, if present.
func (s *Store) Get(key string) (*model.Profile, bool) {
	sh := s.getShard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	p, ok := sh.profiles[key]
	return p, ok
}

// Delete removes the profile for a key. Deleting an absent key is a
// safe no-op reported as false.
func (s *Store) Delete(key string) bool {
	sh := s.getShard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.profiles[key]; !ok {
		return false
	}
	delete(sh.profiles, key)
	return true
}

// Clear empties the profile table and returns the number of profiles
// removed.
func (s *Store) Clear() int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += len(sh.profiles)
		sh.profiles = make(map[string]*model.Profile)
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of profiles currently stored.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.profiles)
		sh.mu.RUnlock()
	}
	return n
}

// Stats derives the counters over the current profile table. The result
// is consistent with some serialization of completed mutations; it may
// trail an in-flight upsert by one.
func (s *Store) Stats() model.Stats {
	var st model.Stats
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, p := range sh.profiles {
			st.TotalProfiles++
			if p.TCP != nil {
				st.TCPProfiles++
			}
			if p.HTTP != nil {
				st.HTTPProfiles++
			}
			if p.TLS != nil {
				st.TLSProfiles++
			}
			if p.Complete() {
				st.CompleteProfiles++
			}
		}
		sh.mu.RUnlock()
	}
	return st
}
