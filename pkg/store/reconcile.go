package store

import (
	"sort"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// Reconcile recomputes, for every non-profile annotation without a ParentID,
// whether it is now fully contained in a profile rectangle, and links it.
// Existing ParentID links are never rewritten.
//
// When a leaf fits inside several overlapping profiles the smallest area
// wins, ties broken by the lexicographically smallest profile id, so that
// the assignment does not depend on map iteration order.
//
// The return value reports whether any link changed; a second call on an
// unchanged collection is a no-op.
func (s *Store) Reconcile() bool {
	profiles := make([]*annotation.Annotation, 0)
	for _, a := range s.active {
		if a.Category == annotation.CategoryProfile {
			profiles = append(profiles, a)
		}
	}
	sort.Slice(profiles, func(i, j int) bool {
		ai, aj := profiles[i].Bounds().Area(), profiles[j].Bounds().Area()
		if ai != aj {
			return ai < aj
		}
		return profiles[i].ID < profiles[j].ID
	})

	changed := false
	for _, set := range []map[string]*annotation.Annotation{s.active, s.pending} {
		for _, a := range set {
			if a.Category == annotation.CategoryProfile || a.ParentID != "" {
				continue
			}
			for _, p := range profiles {
				if p.Bounds().ContainsRect(a.Bounds()) {
					a.ParentID = p.ID
					changed = true
					break
				}
			}
		}
	}
	return changed
}
