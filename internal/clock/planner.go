// Package clock turns "now" into the ordered window of TargetInstants the
// pipeline is responsible for on a given run (spec.md §4.1).
package clock

import (
	"fmt"
	"time"
)

// TargetInstant is one quantized point in the rolling window.
type TargetInstant struct {
	WindowIndex int
	UTCTime     time.Time
}

// Key is the manifest key for this instant: ISO-8601 at second precision.
func (t TargetInstant) Key() string {
	return t.UTCTime.UTC().Format(time.RFC3339)
}

func (t TargetInstant) String() string {
	return fmt.Sprintf("#%d@%s", t.WindowIndex, t.Key())
}

// Window describes the planned span: [Start, End] inclusive, at a fixed
// cadence, plus the ordered instants covering it.
type Window struct {
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Instants []TargetInstant
}

// Plan computes the ordered, oldest-first TargetInstant sequence for the
// rolling window ending at now-safeDelay, quantized to interval boundaries.
//
// windowEnd sits at the last interval boundary at or before now-safeDelay.
// windowStart = windowEnd - (totalDays*framesPerDay-1)*interval. The sequence
// length is exactly totalDays*(1440/intervalMinutes).
func Plan(now time.Time, safeDelayDays, totalDays, intervalMinutes int) (Window, error) {
	if intervalMinutes <= 0 || 1440%intervalMinutes != 0 {
		return Window{}, fmt.Errorf("clock: intervalMinutes %d must evenly divide a day", intervalMinutes)
	}
	if totalDays <= 0 {
		return Window{}, fmt.Errorf("clock: totalDays must be > 0")
	}
	if safeDelayDays < 0 {
		return Window{}, fmt.Errorf("clock: safeDelayDays must be >= 0")
	}

	interval := time.Duration(intervalMinutes) * time.Minute
	framesPerDay := 1440 / intervalMinutes
	totalFrames := totalDays * framesPerDay

	safeDelay := time.Duration(safeDelayDays) * 24 * time.Hour
	cutoff := now.UTC().Add(-safeDelay)
	windowEnd := quantize(cutoff, interval)
	windowStart := windowEnd.Add(-time.Duration(totalFrames-1) * interval)

	instants := make([]TargetInstant, 0, totalFrames)
	t := windowStart
	for i := 0; i < totalFrames; i++ {
		instants = append(instants, TargetInstant{WindowIndex: i, UTCTime: t})
		t = t.Add(interval)
	}

	return Window{Start: windowStart, End: windowEnd, Interval: interval, Instants: instants}, nil
}

// quantize floors t down to the nearest multiple of interval since the Unix
// epoch, in UTC.
func quantize(t time.Time, interval time.Duration) time.Time {
	u := t.UTC()
	unix := u.Unix()
	step := int64(interval.Seconds())
	floored := (unix / step) * step
	if unix < 0 && unix%step != 0 {
		floored -= step
	}
	return time.Unix(floored, 0).UTC()
}
