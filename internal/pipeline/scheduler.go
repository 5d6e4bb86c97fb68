// Package pipeline implements the Scheduler: bounded-concurrency
// fetch→composite stages with backpressure and periodic checkpointing
// (spec.md §4.6), generalizing the teacher's unbounded goroutine+channel
// ring-buffer idiom (main.go's rawBufferRing, cmd/lepton/main.go's
// imageRing) into the spec's F/C bounded-worker contract.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog"

	"github.com/solarlapse/heliopipe/internal/clock"
	"github.com/solarlapse/heliopipe/internal/composite"
	"github.com/solarlapse/heliopipe/internal/dedupe"
	"github.com/solarlapse/heliopipe/internal/errs"
	"github.com/solarlapse/heliopipe/internal/fetch"
	"github.com/solarlapse/heliopipe/internal/source"
	"github.com/solarlapse/heliopipe/internal/store"
)

// Config bounds the Scheduler's concurrency and checkpoint cadence.
type Config struct {
	FetchConcurrency     int
	CompositeConcurrency int
	CheckpointEvery       int
	AbandonHorizon        time.Duration
}

// Scheduler drives the fetch→composite pipeline for one run over a Window.
type Scheduler struct {
	cfg        Config
	fetcher    *fetch.Fetcher
	compositor *composite.Compositor
	registry   *dedupe.Registry
	manifest   *store.Manifest
	frameStore *store.Store
	specs      map[source.Kind]source.Spec
	log        zerolog.Logger

	onCheckpoint func() error
}

// New builds a Scheduler.
func New(cfg Config, fetcher *fetch.Fetcher, compositor *composite.Compositor, registry *dedupe.Registry, manifest *store.Manifest, frameStore *store.Store, specs map[source.Kind]source.Spec, onCheckpoint func() error, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg: cfg, fetcher: fetcher, compositor: compositor, registry: registry,
		manifest: manifest, frameStore: frameStore, specs: specs,
		onCheckpoint: onCheckpoint, log: log,
	}
}

type tuple struct {
	instant clock.TargetInstant
	corona  fetch.Result
	disk    fetch.Result
	err     error
}

// Run processes every TargetInstant in window: retry-eligible failed
// records first (oldest first), then currently-missing instants, also
// oldest first (spec.md §4.6 Priority). It returns the final RunState.
func (s *Scheduler) Run(ctx context.Context, window clock.Window) (*RunState, error) {
	state := NewRunState(len(window.Instants))
	state.SetPhase(PhaseFetching)

	workItems := s.planWorkItems(window, state)

	fetchSem := semaphore.NewWeighted(int64(s.cfg.FetchConcurrency))
	tuples := make(chan tuple, s.cfg.FetchConcurrency)

	var fetchWG sync.WaitGroup
	var processed int64

	// Fetch stage dispatcher.
	go func() {
		for _, item := range workItems {
			if ctx.Err() != nil {
				break // stop dispatching new work; in-flight fetches still finish.
			}
			if err := fetchSem.Acquire(ctx, 1); err != nil {
				break
			}
			fetchWG.Add(1)
			go func(item clock.TargetInstant) {
				defer fetchSem.Release(1)
				defer fetchWG.Done()
				t := s.fetchPair(ctx, item)
				select {
				case tuples <- t:
				case <-ctx.Done():
				}
			}(item)
		}
		fetchWG.Wait()
		close(tuples)
	}()

	// Composite stage: bounded worker pool consuming the handoff channel.
	var compositeWG sync.WaitGroup
	for i := 0; i < s.cfg.CompositeConcurrency; i++ {
		compositeWG.Add(1)
		go func() {
			defer compositeWG.Done()
			for t := range tuples {
				s.processTuple(t, state)
				n := atomic.AddInt64(&processed, 1)
				if s.cfg.CheckpointEvery > 0 && n%int64(s.cfg.CheckpointEvery) == 0 && s.onCheckpoint != nil {
					if err := s.onCheckpoint(); err != nil {
						s.log.Warn().Err(err).Msg("checkpoint flush failed")
					}
				}
			}
		}()
	}
	compositeWG.Wait()

	state.SetPhase(PhaseDone)
	if s.onCheckpoint != nil {
		if err := s.onCheckpoint(); err != nil {
			return state, errs.New(errs.StorageError, "pipeline.Run.finalCheckpoint", err)
		}
	}
	return state, nil
}

// planWorkItems returns failed-but-retry-eligible instants first (oldest
// first), then missing instants (oldest first) — spec.md §4.6 Priority.
// Instants whose existing record has already succeeded are skipped and
// counted in state as FramesSkipped; instants whose failure predates
// AbandonHorizon transition to StatusAbandoned and count as FramesAbandoned.
func (s *Scheduler) planWorkItems(window clock.Window, state *RunState) []clock.TargetInstant {
	now := time.Now().UTC()
	var retries, missing []clock.TargetInstant

	for _, instant := range window.Instants {
		rec, ok := s.manifest.Get(instant.Key())
		if !ok {
			missing = append(missing, instant)
			continue
		}
		switch rec.Status {
		case store.StatusSuccess:
			state.IncSkipped()
			continue
		case store.StatusAbandoned:
			continue
		case store.StatusFailed:
			if now.Sub(rec.FirstAttemptAt) > s.cfg.AbandonHorizon {
				rec.Status = store.StatusAbandoned
				s.manifest.Upsert(instant.Key(), rec)
				state.IncAbandoned()
				continue
			}
			retries = append(retries, instant)
		}
	}
	return append(retries, missing...)
}

// fetchPair retrieves both source layers for instant in parallel.
func (s *Scheduler) fetchPair(ctx context.Context, instant clock.TargetInstant) tuple {
	var corona, disk fetch.Result
	var coronaErr, diskErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		corona, coronaErr = s.fetcher.Fetch(ctx, instant, s.specs[source.Corona], s.registry)
	}()
	go func() {
		defer wg.Done()
		disk, diskErr = s.fetcher.Fetch(ctx, instant, s.specs[source.Disk], s.registry)
	}()
	wg.Wait()

	t := tuple{instant: instant, corona: corona, disk: disk}
	if coronaErr != nil {
		t.err = coronaErr
	} else if diskErr != nil {
		t.err = diskErr
	}
	return t
}

// processTuple composites a successfully-fetched pair, or records the
// failure, updating the Manifest and RunState.
func (s *Scheduler) processTuple(t tuple, state *RunState) {
	key := t.instant.Key()
	existing, _ := s.manifest.Get(key)

	rec := existing
	if rec.FirstAttemptAt.IsZero() {
		rec.FirstAttemptAt = time.Now().UTC()
	} else {
		state.IncRetried()
	}
	rec.LastAttemptAt = time.Now().UTC()
	rec.Attempts++

	if t.err != nil {
		rec.Status = store.StatusFailed
		rec.LastError = t.err.Error()
		s.manifest.Upsert(key, rec)
		kind, _ := errs.As(t.err)
		state.IncFailed(kind.String())
		return
	}

	if t.corona.OffsetApplied != 0 {
		state.AddFallbacksUsed(1)
	}
	if t.disk.OffsetApplied != 0 {
		state.AddFallbacksUsed(1)
	}
	if t.corona.Duplicate || t.disk.Duplicate {
		state.IncDuplicatesResolved()
	}

	frameBytes, err := s.compositor.Compose(t.corona.Bytes, t.disk.Bytes)
	if err != nil {
		rec.Status = store.StatusFailed
		rec.LastError = err.Error()
		s.manifest.Upsert(key, rec)
		kind, _ := errs.As(err)
		state.IncFailed(kind.String())
		return
	}

	path, err := s.frameStore.WriteFrame(t.instant.UTCTime, frameBytes)
	if err != nil {
		rec.Status = store.StatusFailed
		rec.LastError = err.Error()
		s.manifest.Upsert(key, rec)
		state.IncFailed(errs.StorageError.String())
		return
	}

	rec.Status = store.StatusSuccess
	rec.LastError = ""
	rec.CoronaOffset = t.corona.OffsetApplied
	rec.DiskOffset = t.disk.OffsetApplied
	rec.CoronaFingerprint = store.EncodeFingerprint(t.corona.Fingerprint)
	rec.DiskFingerprint = store.EncodeFingerprint(t.disk.Fingerprint)
	rec.Duplicate = t.corona.Duplicate || t.disk.Duplicate
	rec.FilePath = path
	rec.Bytes = int64(len(frameBytes))
	s.manifest.Upsert(key, rec)
	state.IncSucceeded()
}
