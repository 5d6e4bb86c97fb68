// Package dedupe implements the process-wide Duplicate Registry: a
// per-source fingerprint index that rejects cross-frame repeats while
// tolerating the adjacent-frame duplicates upstream legitimately publishes
// at cadence boundaries (spec.md §4.3).
package dedupe

import "sync"

// Fingerprint is a 128-bit digest of raw fetched bytes.
type Fingerprint [16]byte

// Decision is the result of offering a fingerprint to the Registry.
type Decision struct {
	Accepted bool
	// DuplicateOfIndex is set when Accepted is false: the windowIndex the
	// fingerprint was already associated with.
	DuplicateOfIndex int
}

// Registry is safe for concurrent use. Offer is the single synchronization
// point the Fetcher relies on: two workers racing on the same fingerprint
// serialize here, the loser retries at its next fallback offset.
type Registry struct {
	mu sync.Mutex
	// bySource[sourceKind][fingerprint] -> set of windowIndex that produced it.
	bySource map[int]map[Fingerprint]map[int]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{bySource: make(map[int]map[Fingerprint]map[int]struct{})}
}

// Offer atomically records (sourceKind, fingerprint, windowIndex) and
// reports whether it is accepted. A fingerprint already bound to a
// non-adjacent windowIndex (|prev-current| > 1) is rejected; an adjacent or
// first-seen fingerprint is accepted.
func (r *Registry) Offer(sourceKind int, fp Fingerprint, windowIndex int) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	perSource, ok := r.bySource[sourceKind]
	if !ok {
		perSource = make(map[Fingerprint]map[int]struct{})
		r.bySource[sourceKind] = perSource
	}
	indices, seen := perSource[fp]
	if !seen {
		perSource[fp] = map[int]struct{}{windowIndex: {}}
		return Decision{Accepted: true}
	}

	for idx := range indices {
		if idx == windowIndex {
			return Decision{Accepted: true}
		}
		if diff := idx - windowIndex; diff > 1 || diff < -1 {
			return Decision{Accepted: false, DuplicateOfIndex: idx}
		}
	}
	// Every existing index is adjacent to windowIndex: tolerated.
	indices[windowIndex] = struct{}{}
	return Decision{Accepted: true}
}

// Rebuild replaces the Registry's contents from a manifest snapshot. Used on
// startup: the Registry is a derived structure, rebuildable from persisted
// fingerprints (spec.md §3 invariant).
func Rebuild(entries []Entry) *Registry {
	r := New()
	for _, e := range entries {
		r.Offer(e.SourceKind, e.Fingerprint, e.WindowIndex)
	}
	return r
}

// Entry is one (sourceKind, fingerprint, windowIndex) fact used to persist
// or rebuild a Registry.
type Entry struct {
	SourceKind  int
	Fingerprint Fingerprint
	WindowIndex int
}

// Snapshot dumps the Registry's contents for persistence alongside the
// manifest.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for sourceKind, perSource := range r.bySource {
		for fp, indices := range perSource {
			for idx := range indices {
				out = append(out, Entry{SourceKind: sourceKind, Fingerprint: fp, WindowIndex: idx})
			}
		}
	}
	return out
}
