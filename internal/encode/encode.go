// Package encode implements the Encoder Orchestrator: it turns a selection
// of persisted frames into an H.264 video rendition via an external ffmpeg
// subprocess, chunking long selections to bound peak memory (spec.md §4.7).
package encode

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/solarlapse/heliopipe/internal/errs"
)

// Rendition is one output preset (spec.md §4.7).
type Rendition struct {
	Name        string
	Width       int
	Height      int
	CenterCrop  bool // true for mobile/social: center-crop the desktop frame
	MaxFrames   int  // 0 = unbounded; social caps at 60*fps
}

// Presets returns the three frozen rendition specs for the given fps.
func Presets(fps int) []Rendition {
	return []Rendition{
		{Name: "desktop", Width: 1460, Height: 1200},
		{Name: "mobile", Width: 1080, Height: 1350, CenterCrop: true},
		{Name: "social", Width: 1080, Height: 1350, CenterCrop: true, MaxFrames: 60 * fps},
	}
}

// Config parameterizes the ffmpeg invocation (spec.md §9 EncodeConfig).
type Config struct {
	FFmpegPath     string
	FPS            int
	CRF            int
	Preset         string
	MaxChunkFrames int
}

// Result reports what one rendition's encode produced.
type Result struct {
	Rendition      string
	OutputPath     string
	FramesSelected int
	FramesOmitted  int
	ChunkCount     int
}

// Orchestrator drives chunked ffmpeg encodes for one or more renditions.
type Orchestrator struct {
	cfg    Config
	tmpDir string
	log    zerolog.Logger
}

// New builds an Orchestrator whose chunk/concat scratch files live under tmpDir.
func New(cfg Config, tmpDir string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, tmpDir: tmpDir, log: log}
}

// Encode takes the ordered framePaths (only the most recent r.MaxFrames when
// r.MaxFrames > 0), chunks them, encodes each chunk, and stream-copies a
// concatenation to outputPath. Missing frames (a selected path with no file) are omitted rather than substituted; the
// omission count is reported, never masked (spec.md §4.7 "Missing frames").
func (o *Orchestrator) Encode(ctx context.Context, r Rendition, framePaths []string, outputPath string) (Result, error) {
	selected := framePaths
	if r.MaxFrames > 0 && len(selected) > r.MaxFrames {
		selected = selected[len(selected)-r.MaxFrames:]
	}

	omitted := 0
	present := make([]string, 0, len(selected))
	for _, p := range selected {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		} else {
			omitted++
		}
	}

	if len(present) == 0 {
		return Result{}, errs.New(errs.EncoderError, "encode.Encode", fmt.Errorf("no frames present for rendition %s", r.Name))
	}

	chunkSize := o.cfg.MaxChunkFrames
	if chunkSize <= 0 {
		chunkSize = len(present)
	}

	var chunkOutputs []string
	for start := 0; start < len(present); start += chunkSize {
		end := min(start+chunkSize, len(present))
		chunkPaths := present[start:end]
		chunkOut, err := o.encodeChunk(ctx, r, chunkPaths, len(chunkOutputs))
		if err != nil {
			return Result{}, err
		}
		chunkOutputs = append(chunkOutputs, chunkOut)
	}
	defer func() {
		for _, c := range chunkOutputs {
			_ = os.Remove(c)
		}
	}()

	if len(chunkOutputs) == 1 {
		if err := os.Rename(chunkOutputs[0], outputPath); err != nil {
			return Result{}, errs.New(errs.EncoderError, "encode.Encode.rename", err)
		}
		chunkOutputs = nil
	} else if err := o.concat(ctx, chunkOutputs, outputPath); err != nil {
		return Result{}, err
	}

	return Result{
		Rendition:      r.Name,
		OutputPath:     outputPath,
		FramesSelected: len(present),
		FramesOmitted:  omitted,
		ChunkCount:     max(1, len(chunkOutputs)),
	}, nil
}

// encodeChunk builds a concat-input list for chunkPaths and runs a single
// ffmpeg encode producing one intermediate MP4.
func (o *Orchestrator) encodeChunk(ctx context.Context, r Rendition, chunkPaths []string, chunkIndex int) (string, error) {
	listPath := filepath.Join(o.tmpDir, fmt.Sprintf("chunk-%s-%d-input.txt", r.Name, chunkIndex))
	if err := writeConcatList(listPath, chunkPaths, 1.0/float64(o.cfg.FPS)); err != nil {
		return "", errs.New(errs.EncoderError, "encode.encodeChunk.list", err)
	}
	defer os.Remove(listPath)

	outPath := filepath.Join(o.tmpDir, fmt.Sprintf("chunk-%s-%d-out.mp4", r.Name, chunkIndex))

	args := []string{
		"-y", "-f", "concat", "-safe", "0", "-r", fmt.Sprintf("%d", o.cfg.FPS),
		"-i", listPath,
	}
	if r.CenterCrop {
		args = append(args, "-vf", fmt.Sprintf("crop=%d:%d", r.Width, r.Height))
	} else {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", r.Width, r.Height))
	}
	args = append(args,
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-crf", fmt.Sprintf("%d", o.cfg.CRF), "-preset", o.cfg.Preset,
		"-movflags", "+faststart", outPath,
	)

	if err := o.run(ctx, args); err != nil {
		return "", err
	}
	return outPath, nil
}

// concat stream-copies (no re-encode) a sequence of chunk outputs into the
// final rendition file, bounding peak memory independent of window length.
func (o *Orchestrator) concat(ctx context.Context, chunkOutputs []string, outputPath string) error {
	listPath := filepath.Join(o.tmpDir, "concat-final.txt")
	if err := writeConcatList(listPath, chunkOutputs, 0); err != nil {
		return errs.New(errs.EncoderError, "encode.concat.list", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-y", "-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy", "-movflags", "+faststart", outputPath,
	}
	return o.run(ctx, args)
}

// run invokes ffmpeg, capturing stderr into the Orchestrator's log rather
// than parsing it; only exit status and final file stat are contractual
// (spec.md §6 "External encoder").
func (o *Orchestrator) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, o.cfg.FFmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errs.New(errs.EncoderError, "encode.run.pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return errs.New(errs.EncoderError, "encode.run.start", err)
	}
	go logStderr(o.log, stderr)
	if err := cmd.Wait(); err != nil {
		return errs.New(errs.EncoderError, "encode.run.wait", err)
	}
	return nil
}

func logStderr(log zerolog.Logger, r interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debug().Str("stream", "ffmpeg").Msg(scanner.Text())
	}
}

// writeConcatList emits ffmpeg's concat-demuxer input format: one
// `file '<path>'` line per entry, with an optional per-entry `duration`
// record when frameDuration > 0 (spec.md §9 "External encoder as subprocess").
func writeConcatList(path string, entries []string, frameDuration float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		abs, err := filepath.Abs(e)
		if err != nil {
			abs = e
		}
		fmt.Fprintf(w, "file '%s'\n", abs)
		if frameDuration > 0 {
			fmt.Fprintf(w, "duration %f\n", frameDuration)
		}
	}
	return w.Flush()
}
