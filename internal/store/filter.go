package store

import (
	"sort"
	"strings"
	"time"

	"NetProfiler/internal/model"
)

// Filter restricts and paginates List results. The zero value matches
// everything.
type Filter struct {
	// Kind keeps only profiles with the given signature field populated.
	Kind model.SourceKind
	// CompleteOnly keeps only profiles with all three fields populated.
	CompleteOnly bool
	// MinQuality keeps only profiles whose best match quality is at least
	// this value.
	MinQuality float64
	// Since keeps only profiles seen within the given duration.
	Since time.Duration
	// Search is a case-insensitive free-text match over the IP and the
	// decoded OS, browser, user agent and JA4 strings.
	Search string
	// Limit and Offset paginate the result after sorting. Limit <= 0
	// means no limit.
	Limit, Offset int
}

func (f Filter) matches(p *model.Profile, now time.Time) bool {
	switch f.Kind {
	case model.SourceTCP:
		if p.TCP == nil {
			return false
		}
	case model.SourceHTTP:
		if p.HTTP == nil {
			return false
		}
	case model.SourceTLS:
		if p.TLS == nil {
			return false
		}
	}
	if f.CompleteOnly && !p.Complete() {
		return false
	}
	if f.MinQuality > 0 && p.Quality() < f.MinQuality {
		return false
	}
	if f.Since > 0 && p.LastSeen.Before(now.Add(-f.Since)) {
		return false
	}
	if f.Search != "" && !matchesSearch(p, strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func matchesSearch(p *model.Profile, needle string) bool {
	haystack := []string{p.ID}
	if p.TCP != nil {
		haystack = append(haystack, p.TCP.OS, p.TCP.Signature)
	}
	if p.HTTP != nil {
		haystack = append(haystack, p.HTTP.Browser, p.HTTP.OS, p.HTTP.UserAgent)
	}
	if p.TLS != nil {
		haystack = append(haystack, p.TLS.JA4, p.TLS.SNI)
	}
	for _, h := range haystack {
		if h != "" && strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

// List returns all profiles matching the filter, most recently seen
// first, with pagination applied after sorting so page boundaries are
// stable for a given table state.
func (s *Store) List(f Filter) []*model.Profile {
	now := time.Now()
	matched := make([]*model.Profile, 0)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, p := range sh.profiles {
			if f.matches(p, now) {
				matched = append(matched, p)
			}
		}
		sh.mu.RUnlock()
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastSeen.Equal(matched[j].LastSeen) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].LastSeen.After(matched[j].LastSeen)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*model.Profile{}
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched
}
