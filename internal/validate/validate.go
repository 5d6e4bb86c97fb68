// Package validate implements the `validate` subcommand's frame checker (spec.md §6,
// §8): for a file or directory, it reports decode success, dimension match,
// and size-floor compliance, tolerating individual corrupt files.
package validate

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
)

// Report is the outcome for one frame file.
type Report struct {
	Path        string
	DecodeError error
	Width       int
	Height      int
	SizeBytes   int64
}

// OK reports whether the frame satisfies every check against the expected
// geometry and the minimum file size.
func (r Report) OK(wantWidth, wantHeight int, minBytes int64) bool {
	return r.DecodeError == nil && r.Width == wantWidth && r.Height == wantHeight && r.SizeBytes >= minBytes
}

// Path runs the validator over a single file or every file directly inside
// a directory. A per-file decode failure is recorded in its Report rather
// than aborting the remaining walk (spec.md §6 "tolerant of individual
// corrupt files").
func Path(path string, wantWidth, wantHeight int, minBytes int64) ([]Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("validate: stat %s: %w", path, err)
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("validate: read dir %s: %w", path, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	} else {
		paths = []string{path}
	}

	reports := make([]Report, 0, len(paths))
	for _, p := range paths {
		reports = append(reports, validateOne(p))
	}
	return reports, nil
}

func validateOne(path string) Report {
	r := Report{Path: path}

	stat, err := os.Stat(path)
	if err != nil {
		r.DecodeError = err
		return r
	}
	r.SizeBytes = stat.Size()

	f, err := os.Open(path)
	if err != nil {
		r.DecodeError = err
		return r
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		r.DecodeError = err
		return r
	}
	r.Width = cfg.Width
	r.Height = cfg.Height
	return r
}

// Summarize counts how many reports pass every check.
func Summarize(reports []Report, wantWidth, wantHeight int, minBytes int64) (passed, failed int) {
	for _, r := range reports {
		if r.OK(wantWidth, wantHeight, minBytes) {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
