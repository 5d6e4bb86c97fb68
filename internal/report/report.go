// Package report renders a RunState as the end-of-run terminal summary and
// the machine-readable health.json snapshot the `status` subcommand reads back
// (spec.md §7 "User-visible behavior").
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/solarlapse/heliopipe/internal/pipeline"
	"github.com/solarlapse/heliopipe/internal/runctl"
)

// Health is the persisted snapshot of the most recent run, read back by
// the `status` subcommand and written atomically to health.json at end of run.
type Health struct {
	Phase              string         `json:"phase"`
	StartedAt          time.Time      `json:"startedAt"`
	FinishedAt         time.Time      `json:"finishedAt"`
	ExitCode           int            `json:"exitCode"`
	FramesPlanned      int            `json:"framesPlanned"`
	FramesSucceeded    int            `json:"framesSucceeded"`
	FramesFailed       int            `json:"framesFailed"`
	FramesSkipped      int            `json:"framesSkipped"`
	FramesRetried      int            `json:"framesRetried"`
	FramesAbandoned    int            `json:"framesAbandoned"`
	FallbacksUsed      int            `json:"fallbacksUsed"`
	DuplicatesResolved int            `json:"duplicatesResolved"`
	ErrorsByKind       map[string]int `json:"errorsByKind"`
	Renditions         []RenditionSummary `json:"renditions,omitempty"`
}

// RenditionSummary captures one encoded video's outcome for the report.
type RenditionSummary struct {
	Name           string `json:"name"`
	OutputPath     string `json:"outputPath,omitempty"`
	FramesSelected int    `json:"framesSelected"`
	FramesOmitted  int    `json:"framesOmitted"`
	Error          string `json:"error,omitempty"`
}

// FromRunState builds a Health snapshot from a finished run.
func FromRunState(snap pipeline.Snapshot, finishedAt time.Time, exitCode runctl.ExitCode, renditions []RenditionSummary) Health {
	return Health{
		Phase:              string(snap.Phase),
		StartedAt:          snap.StartedAt,
		FinishedAt:         finishedAt,
		ExitCode:           int(exitCode),
		FramesPlanned:      snap.FramesPlanned,
		FramesSucceeded:    snap.FramesSucceeded,
		FramesFailed:       snap.FramesFailed,
		FramesSkipped:      snap.FramesSkipped,
		FramesRetried:      snap.FramesRetried,
		FramesAbandoned:    snap.FramesAbandoned,
		FallbacksUsed:      snap.FallbacksUsed,
		DuplicatesResolved: snap.DuplicatesResolved,
		ErrorsByKind:       snap.ErrorsByKind,
		Renditions:         renditions,
	}
}

// Save atomically writes h to path (sibling .tmp + rename).
func Save(path string, h Health) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal health: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Load reads a previously saved Health snapshot. The caller distinguishes
// "no runs yet" (os.IsNotExist) from a real read failure.
func Load(path string) (Health, error) {
	var h Health
	data, err := os.ReadFile(path)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("report: unmarshal %s: %w", path, err)
	}
	return h, nil
}

// Print renders the single-page terminal report, coloring the outcome
// (success green, failures red) the way five82/drapto colors its CLI output.
func Print(w io.Writer, h Health) {
	runtime := h.FinishedAt.Sub(h.StartedAt)
	var throughput float64
	if runtime > 0 {
		throughput = float64(h.FramesSucceeded) / runtime.Seconds()
	}

	fmt.Fprintf(w, "Run finished: exit=%d runtime=%s throughput=%.2f frames/s\n", h.ExitCode, runtime.Round(time.Second), throughput)
	fmt.Fprintf(w, "  planned=%d ", h.FramesPlanned)
	color.New(color.FgGreen).Fprintf(w, "succeeded=%d ", h.FramesSucceeded)
	fmt.Fprintf(w, "skipped=%d retried=%d ", h.FramesSkipped, h.FramesRetried)
	color.New(color.FgRed).Fprintf(w, "failed=%d ", h.FramesFailed)
	fmt.Fprintf(w, "abandoned=%d\n", h.FramesAbandoned)
	fmt.Fprintf(w, "  fallbacksUsed=%d duplicatesResolved=%d\n", h.FallbacksUsed, h.DuplicatesResolved)

	if len(h.ErrorsByKind) > 0 {
		fmt.Fprintln(w, "  errors by kind:")
		kinds := make([]string, 0, len(h.ErrorsByKind))
		for k := range h.ErrorsByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "    %-20s %d\n", k, h.ErrorsByKind[k])
		}
	}

	for _, r := range h.Renditions {
		if r.Error != "" {
			color.New(color.FgRed).Fprintf(w, "  rendition %-10s FAILED: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Fprintf(w, "  rendition %-10s frames=%d omitted=%d -> %s\n", r.Name, r.FramesSelected, r.FramesOmitted, r.OutputPath)
	}
}
