package dedupe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func fp(b byte) Fingerprint {
	var f Fingerprint
	f[0] = b
	return f
}

func TestOfferFirstSeenAccepted(t *testing.T) {
	r := New()
	d := r.Offer(0, fp(1), 5)
	require.True(t, d.Accepted)
}

func TestOfferAdjacentTolerated(t *testing.T) {
	r := New()
	require.True(t, r.Offer(0, fp(1), 5).Accepted)
	require.True(t, r.Offer(0, fp(1), 6).Accepted)
	require.True(t, r.Offer(0, fp(1), 4).Accepted)
}

func TestOfferNonAdjacentRejected(t *testing.T) {
	r := New()
	require.True(t, r.Offer(0, fp(1), 5).Accepted)
	d := r.Offer(0, fp(1), 8)
	require.False(t, d.Accepted)
	require.Equal(t, 5, d.DuplicateOfIndex)
}

func TestOfferPerSourceIsolated(t *testing.T) {
	r := New()
	require.True(t, r.Offer(0, fp(1), 5).Accepted)
	// Same fingerprint bytes but different sourceKind: independent namespace.
	require.True(t, r.Offer(1, fp(1), 50).Accepted)
}

func TestOfferConcurrentRace(t *testing.T) {
	r := New()
	const n = 50
	results := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every worker's windowIndex is 10 from its neighbours: none are adjacent.
			idx := 100 + i*10
			results[i] = r.Offer(0, fp(9), idx).Accepted
		}(i)
	}
	wg.Wait()
	accepted := 0
	for _, ok := range results {
		if ok {
			accepted++
		}
	}
	// The first writer to reach Offer is accepted; every later one is
	// non-adjacent to it and is rejected.
	require.GreaterOrEqual(t, accepted, 1)
	require.Less(t, accepted, n)
}

func TestRebuildFromSnapshot(t *testing.T) {
	r := New()
	require.True(t, r.Offer(0, fp(1), 5).Accepted)
	require.True(t, r.Offer(0, fp(2), 9).Accepted)
	snap := r.Snapshot()
	r2 := Rebuild(snap)
	d := r2.Offer(0, fp(1), 50)
	require.False(t, d.Accepted)
}
