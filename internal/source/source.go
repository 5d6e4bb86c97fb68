// Package source defines the two upstream image source kinds (Corona, Disk)
// and their fixed per-source configuration, including the ordered temporal
// fallback offset sequence spec.md §4.2 requires to be tried in declared
// order, not by magnitude.
package source

import "fmt"

// Kind identifies one of the two source layers composed into a frame.
type Kind int

const (
	// Corona is the wide-field layer.
	Corona Kind = iota
	// Disk is the near-Sun layer.
	Disk
)

func (k Kind) String() string {
	switch k {
	case Corona:
		return "corona"
	case Disk:
		return "disk"
	default:
		return "unknown"
	}
}

// Spec is the fixed configuration for one SourceKind.
type Spec struct {
	Kind Kind

	// SourceID is the upstream's numeric layer identifier.
	SourceID int
	// ImageScaleArcsecPerPixel is the requested resolution.
	ImageScaleArcsecPerPixel float64
	// Width/Height are the requested pixel dimensions.
	Width, Height int

	// FallbackOffsetsMinutes is the ordered sequence of signed minute
	// offsets to try, beginning with 0. Order is significant: it is a
	// configuration-version property, not something to sort by magnitude
	// (spec.md §4.2 tie-breaking note).
	FallbackOffsetsMinutes []int
}

// Specs returns the frozen configuration for both source kinds at the given
// cadence. intervalMinutes bounds the legal offset magnitude to
// intervalMinutes/2 - 1.
func Specs(intervalMinutes int) map[Kind]Spec {
	return map[Kind]Spec{
		Corona: {
			Kind:                     Corona,
			SourceID:                 4,
			ImageScaleArcsecPerPixel: 2.5,
			Width:                    1920,
			Height:                   1920,
			// Corona prefers negative offsets empirically (spec.md §4.2).
			FallbackOffsetsMinutes: clampOffsets([]int{0, -3, -6, -9, -12, 3, 6, 9, 12}, intervalMinutes),
		},
		Disk: {
			Kind:                     Disk,
			SourceID:                 10,
			ImageScaleArcsecPerPixel: 1.21,
			Width:                    1920,
			Height:                   1920,
			// Disk alternates sign (spec.md §4.2).
			FallbackOffsetsMinutes: clampOffsets([]int{0, 3, -3, 6, -6, 9, -9, 12, -12}, intervalMinutes),
		},
	}
}

func clampOffsets(offsets []int, intervalMinutes int) []int {
	maxMag := intervalMinutes/2 - 1
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if abs(o) <= maxMag {
			out = append(out, o)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ValidateOffset reports whether an offset magnitude is legal for the given
// cadence: strictly less than intervalMinutes/2, i.e. up to
// intervalMinutes/2-1 inclusive. Exactly intervalMinutes/2 is rejected
// (spec.md §8 boundary behavior).
func ValidateOffset(offsetMinutes, intervalMinutes int) error {
	maxMag := intervalMinutes/2 - 1
	if abs(offsetMinutes) > maxMag {
		return fmt.Errorf("source: offset %dm exceeds max magnitude %dm for a %dm cadence", offsetMinutes, maxMag, intervalMinutes)
	}
	return nil
}
