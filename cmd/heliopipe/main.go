// heliopipe assembles a rolling window of solar imagery into composited
// frames and encodes them into video renditions, unattended under cron.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/solarlapse/heliopipe/internal/clock"
	"github.com/solarlapse/heliopipe/internal/composite"
	"github.com/solarlapse/heliopipe/internal/config"
	"github.com/solarlapse/heliopipe/internal/dedupe"
	"github.com/solarlapse/heliopipe/internal/encode"
	"github.com/solarlapse/heliopipe/internal/errs"
	"github.com/solarlapse/heliopipe/internal/fetch"
	"github.com/solarlapse/heliopipe/internal/pipeline"
	"github.com/solarlapse/heliopipe/internal/report"
	"github.com/solarlapse/heliopipe/internal/runctl"
	"github.com/solarlapse/heliopipe/internal/source"
	"github.com/solarlapse/heliopipe/internal/store"
	"github.com/solarlapse/heliopipe/internal/validate"
)

func newLogger(format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func main() {
	var exitCode int

	root := &cobra.Command{
		Use:   "heliopipe",
		Short: "solar time-lapse frame and video pipeline",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "execute one production pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := doRun(cmd.Context())
			exitCode = int(code)
			return err
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "print the last health snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := doStatus()
			exitCode = int(code)
			return err
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <frame-path>",
		Short: "validate one frame file or every frame in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := doValidate(args[0])
			exitCode = int(code)
			return err
		},
	}

	root.AddCommand(runCmd, statusCmd, validateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "heliopipe: %s\n", err)
		if exitCode == 0 {
			exitCode = int(runctl.ExitFatal)
		}
	}
	os.Exit(exitCode)
}

func doRun(ctx context.Context) (runctl.ExitCode, error) {
	cfg, err := config.Load()
	if err != nil {
		return runctl.ExitFatal, err
	}
	log := newLogger(cfg.LogFormat)

	release, code, err := runctl.AcquireLock(filepath.Join(cfg.BaseDir, "production.lock"), time.Duration(cfg.LockStaleHours)*time.Hour)
	if err != nil {
		return code, err
	}
	defer release()

	if code, err := runctl.CheckDiskSpace(cfg.BaseDir, cfg.MinFreeDiskGiB); err != nil {
		return code, err
	}

	ctx, stop := runctl.WithCancellation(ctx)
	defer stop()

	frameStore, err := store.New(cfg.BaseDir)
	if err != nil {
		return runctl.ExitFatal, err
	}
	manifest := store.LoadManifest(frameStore.ManifestPath())

	window, err := clock.Plan(time.Now(), cfg.SafeDelayDays, cfg.TotalDays, cfg.IntervalMinutes)
	if err != nil {
		return runctl.ExitFatal, err
	}
	specs := source.Specs(cfg.IntervalMinutes)
	indexByKey := make(map[string]int, len(window.Instants))
	for _, instant := range window.Instants {
		indexByKey[instant.Key()] = instant.WindowIndex
	}
	registry := dedupe.Rebuild(manifest.DuplicateEntries(func(key string) (int, bool) {
		idx, ok := indexByKey[key]
		return idx, ok
	}, specs[source.Corona].SourceID, specs[source.Disk].SourceID))

	fetcher := fetch.New(fetch.Config{
		Retries:         cfg.FetchRetries,
		BaseDelay:       time.Second,
		Timeout:         time.Duration(cfg.FetchTimeoutSec) * time.Second,
		MinBodyBytes:    cfg.MinBodyBytes,
		UpstreamBaseURL: cfg.UpstreamURL,
	}, log)

	compositor, err := composite.New(composite.DefaultConfig())
	if err != nil {
		return runctl.ExitFatal, err
	}

	sched := pipeline.New(pipeline.Config{
		FetchConcurrency:     cfg.FetchConcurrency,
		CompositeConcurrency: cfg.CompositeConcurrency,
		CheckpointEvery:      cfg.CheckpointEvery,
		AbandonHorizon:       time.Duration(cfg.AbandonDays) * 24 * time.Hour,
	}, fetcher, compositor, registry, manifest, frameStore, specs, func() error {
		return manifest.Save()
	}, log)

	state, err := sched.Run(ctx, window)
	if err != nil {
		return runctl.ExitFatal, err
	}
	snap := state.Snapshot()

	var renditions []report.RenditionSummary
	if snap.FramesSucceeded > 0 {
		renditions = runEncoders(ctx, cfg, frameStore, manifest, window, log)
	}

	frameStore.GCFrames(window.Start)
	frameStore.GCVideos(time.Now(), 3*24*time.Hour)

	code = runctl.ExitCodeForRun(snap.FramesPlanned, snap.FramesSucceeded, snap.FramesFailed)

	h := report.FromRunState(snap, time.Now().UTC(), code, renditions)
	if err := report.Save(frameStore.HealthPath(), h); err != nil {
		log.Warn().Err(err).Msg("failed to save health snapshot")
	}
	report.Print(os.Stdout, h)

	if ctx.Err() != nil {
		return runctl.ExitInterrupted, nil
	}
	return code, nil
}

func runEncoders(ctx context.Context, cfg *config.Config, frameStore *store.Store, manifest *store.Manifest, window clock.Window, log zerolog.Logger) []report.RenditionSummary {
	orch := encode.New(encode.Config{
		FFmpegPath:     cfg.FFmpegPath,
		FPS:            cfg.FPS,
		CRF:            cfg.CRF,
		Preset:         cfg.Preset,
		MaxChunkFrames: cfg.MaxChunkFrames,
	}, frameStore.TmpRoot(), log)

	var framePaths []string
	for _, instant := range window.Instants {
		rec, ok := manifest.Get(instant.Key())
		if !ok || rec.Status != store.StatusSuccess {
			continue
		}
		framePaths = append(framePaths, rec.FilePath)
	}

	dateSuffix := window.End.Format("2006-01-02")
	var summaries []report.RenditionSummary
	for _, r := range encode.Presets(cfg.FPS) {
		outPath := filepath.Join(frameStore.VideosRoot(), fmt.Sprintf("%s_%s.mp4", r.Name, dateSuffix))
		result, err := orch.Encode(ctx, r, framePaths, outPath)
		summary := report.RenditionSummary{Name: r.Name}
		if err != nil {
			kind, _ := errs.As(err)
			summary.Error = kind.String() + ": " + err.Error()
			log.Warn().Err(err).Str("rendition", r.Name).Msg("encode failed")
		} else {
			summary.OutputPath = result.OutputPath
			summary.FramesSelected = result.FramesSelected
			summary.FramesOmitted = result.FramesOmitted
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func doStatus() (runctl.ExitCode, error) {
	cfg, err := config.Load()
	if err != nil {
		return runctl.ExitFatal, err
	}
	h, err := report.Load(filepath.Join(cfg.BaseDir, "health.json"))
	if os.IsNotExist(err) {
		fmt.Println("no runs yet")
		return runctl.ExitSuccess, nil
	}
	if err != nil {
		return runctl.ExitFatal, err
	}
	report.Print(os.Stdout, h)
	return runctl.ExitSuccess, nil
}

func doValidate(path string) (runctl.ExitCode, error) {
	cfg := composite.DefaultConfig()
	reports, err := validate.Path(path, cfg.CropRect.Dx(), cfg.CropRect.Dy(), 50*1024)
	if err != nil {
		return runctl.ExitFatal, err
	}
	passed, failed := validate.Summarize(reports, cfg.CropRect.Dx(), cfg.CropRect.Dy(), 50*1024)
	for _, r := range reports {
		if r.OK(cfg.CropRect.Dx(), cfg.CropRect.Dy(), 50*1024) {
			continue
		}
		if r.DecodeError != nil {
			fmt.Printf("FAIL %s: decode error: %s\n", r.Path, r.DecodeError)
		} else {
			fmt.Printf("FAIL %s: %dx%d %dB\n", r.Path, r.Width, r.Height, r.SizeBytes)
		}
	}
	fmt.Printf("%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return runctl.ExitPartialErrors, nil
	}
	return runctl.ExitSuccess, nil
}
