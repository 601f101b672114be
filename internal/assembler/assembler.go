package assembler

import (
	"log"
	"sync"
	"sync/atomic"

	"NetProfiler/internal/model"
	"NetProfiler/internal/store"
)

// Publisher receives profile table changes in commit order. Implemented
// by the live hub; declared here so the assembler does not depend on
// the transport.
type Publisher interface {
	PublishUpsert(key string, p *model.Profile, stats model.Stats)
	PublishRemove(key string, stats model.Stats)
	PublishCleared(stats model.Stats)
}

// Assembler funnels every profile table mutation through one
// serialization point so that mutation and notification form a single
// logical operation and the publish order seen by subscribers matches
// the order mutations commit to the store. Reads bypass the mutex and
// go straight to the store.
type Assembler struct {
	store    *store.Store
	mu       sync.Mutex
	pub      Publisher
	ingested atomic.Uint64
}

// New creates an assembler over the given store. The publisher may be
// nil initially and wired with SetPublisher once the hub exists.
func New(st *store.Store) *Assembler {
	return &Assembler{store: st}
}

// SetPublisher wires the change publisher. Must be called before any
// mutation traffic starts.
func (a *Assembler) SetPublisher(pub Publisher) {
	a.pub = pub
}

// Ingest validates one event, merges it into the store and publishes
// the resulting delta. Malformed events are rejected before they touch
// the store.
func (a *Assembler) Ingest(ev model.FingerprintEvent) (store.Outcome, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	outcome, p := a.store.Upsert(ev)
	a.ingested.Add(1)
	if a.pub != nil {
		a.pub.PublishUpsert(ev.Key, p, a.store.Stats())
	}
	return outcome, nil
}

// Delete removes a profile and notifies subscribers. Removing an absent
// key is a no-op reported as false; nothing is published for it.
func (a *Assembler) Delete(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.store.Delete(key) {
		return false
	}
	if a.pub != nil {
		a.pub.PublishRemove(key, a.store.Stats())
	}
	return true
}

// Clear empties the profile table and notifies all subscribers,
// including the one that requested the clear.
func (a *Assembler) Clear() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := a.store.Clear()
	if a.pub != nil {
		a.pub.PublishCleared(a.store.Stats())
	}
	return removed
}

// Consume drains an event channel into the store until the channel is
// closed. Invalid events are logged and skipped without stopping the
// loop.
func (a *Assembler) Consume(events <-chan model.FingerprintEvent) {
	for ev := range events {
		if _, err := a.Ingest(ev); err != nil {
			log.Printf("Dropping malformed event: %v", err)
		}
	}
}

// Profiles lists profiles matching the filter.
func (a *Assembler) Profiles(f store.Filter) []*model.Profile {
	return a.store.List(f)
}

// Profile returns a single profile by key.
func (a *Assembler) Profile(key string) (*model.Profile, bool) {
	return a.store.Get(key)
}

// Stats derives the current counters.
func (a *Assembler) Stats() model.Stats {
	return a.store.Stats()
}

// Ingested returns the number of events merged since start.
func (a *Assembler) Ingested() uint64 {
	return a.ingested.Load()
}
