package pipeline

import (
	"sync"
	"time"
)

// Phase marks which part of the run is currently active, for the status
// surface and report.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseEncoding   Phase = "encoding"
	PhaseRetention  Phase = "retention"
	PhaseDone       Phase = "done"
)

// RunState is the process-wide, mutable run report (spec.md §3).
type RunState struct {
	mu sync.Mutex

	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"startedAt"`

	FramesPlanned   int `json:"framesPlanned"`
	FramesSucceeded int `json:"framesSucceeded"`
	FramesFailed    int `json:"framesFailed"`
	FramesSkipped   int `json:"framesSkipped"`
	FramesRetried   int `json:"framesRetried"`
	FramesAbandoned int `json:"framesAbandoned"`

	FallbacksUsed      int `json:"fallbacksUsed"`
	DuplicatesResolved int `json:"duplicatesResolved"`

	ErrorsByKind map[string]int `json:"errorsByKind"`
}

// NewRunState returns a RunState ready for a new run.
func NewRunState(planned int) *RunState {
	return &RunState{
		Phase:        PhaseIdle,
		StartedAt:    time.Now().UTC(),
		FramesPlanned: planned,
		ErrorsByKind: make(map[string]int),
	}
}

func (s *RunState) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Phase = p
}

func (s *RunState) IncSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesSucceeded++
}

func (s *RunState) IncFailed(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesFailed++
	s.ErrorsByKind[kind]++
}

func (s *RunState) IncSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesSkipped++
}

func (s *RunState) IncRetried() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesRetried++
}

func (s *RunState) IncAbandoned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesAbandoned++
}

func (s *RunState) AddFallbacksUsed(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FallbacksUsed += n
}

func (s *RunState) IncDuplicatesResolved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DuplicatesResolved++
}

// Snapshot is a point-in-time, lock-free copy of RunState safe to serialize,
// print, or pass across goroutines.
type Snapshot struct {
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"startedAt"`

	FramesPlanned   int `json:"framesPlanned"`
	FramesSucceeded int `json:"framesSucceeded"`
	FramesFailed    int `json:"framesFailed"`
	FramesSkipped   int `json:"framesSkipped"`
	FramesRetried   int `json:"framesRetried"`
	FramesAbandoned int `json:"framesAbandoned"`

	FallbacksUsed      int `json:"fallbacksUsed"`
	DuplicatesResolved int `json:"duplicatesResolved"`

	ErrorsByKind map[string]int `json:"errorsByKind"`
}

// Snapshot returns a copy safe to serialize or print.
func (s *RunState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := Snapshot{
		Phase: s.Phase, StartedAt: s.StartedAt,
		FramesPlanned: s.FramesPlanned, FramesSucceeded: s.FramesSucceeded,
		FramesFailed: s.FramesFailed, FramesSkipped: s.FramesSkipped,
		FramesRetried: s.FramesRetried, FramesAbandoned: s.FramesAbandoned,
		FallbacksUsed: s.FallbacksUsed, DuplicatesResolved: s.DuplicatesResolved,
		ErrorsByKind: make(map[string]int, len(s.ErrorsByKind)),
	}
	for k, v := range s.ErrorsByKind {
		cp.ErrorsByKind[k] = v
	}
	return cp
}
