// Package config loads and validates the pipeline's typed configuration
// record from the environment, replacing the ad-hoc per-subsystem config
// objects the teacher used with a single validated-at-startup record (see
// SPEC_FULL.md §9 "Ad-hoc dynamic config objects").
package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config is the root configuration record for one pipeline run. Every field
// has a documented default; Validate checks every field except LogFormat.
type Config struct {
	BaseDir     string `env:"BASE_DIR" envDefault:"/var/lib/heliopipe"`
	UpstreamURL string `env:"UPSTREAM_BASE" envDefault:"https://api.helioviewer.org/v2/takeScreenshot/"`

	FetchConcurrency     int `env:"FETCH_CONCURRENCY" envDefault:"8"`
	CompositeConcurrency int `env:"COMPOSITE_CONCURRENCY" envDefault:"4"`

	FPS    int `env:"FPS" envDefault:"30"`
	CRF    int `env:"CRF" envDefault:"18"`
	Preset string `env:"PRESET" envDefault:"medium"`

	SafeDelayDays    int `env:"SAFE_DELAY_DAYS" envDefault:"2"`
	TotalDays        int `env:"TOTAL_DAYS" envDefault:"56"`
	IntervalMinutes  int `env:"INTERVAL_MINUTES" envDefault:"15"`

	CheckpointEvery int   `env:"CHECKPOINT_EVERY" envDefault:"100"`
	MaxChunkFrames  int   `env:"MAX_CHUNK_FRAMES" envDefault:"1000"`
	MinFreeDiskGiB  int64 `env:"MIN_FREE_DISK_GIB" envDefault:"10"`
	LockStaleHours  int   `env:"LOCK_STALE_HOURS" envDefault:"12"`
	AbandonDays     int   `env:"ABANDON_DAYS" envDefault:"7"`

	FetchRetries      int   `env:"FETCH_RETRIES" envDefault:"3"`
	FetchTimeoutSec   int   `env:"FETCH_TIMEOUT_SECONDS" envDefault:"300"`
	MinBodyBytes      int64 `env:"MIN_BODY_BYTES" envDefault:"1024"`
	MinFrameFileBytes int64 `env:"MIN_FRAME_FILE_BYTES" envDefault:"51200"`

	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // "console" or "json"
}

// Load reads a .env file if present (ignored if absent), then populates a
// Config from the environment and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; dev convenience only

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects an unusable configuration before any lock is acquired or
// any network call is made.
func (c *Config) Validate() error {
	type check struct {
		ok  bool
		msg string
	}
	checks := []check{
		{c.BaseDir != "", "BASE_DIR must not be empty"},
		{c.UpstreamURL != "", "UPSTREAM_BASE must not be empty"},
		{c.FetchConcurrency > 0, "FETCH_CONCURRENCY must be > 0"},
		{c.CompositeConcurrency > 0, "COMPOSITE_CONCURRENCY must be > 0"},
		{c.FPS > 0, "FPS must be > 0"},
		{c.CRF >= 0 && c.CRF <= 51, "CRF must be in [0,51]"},
		{c.Preset != "", "PRESET must not be empty"},
		{c.SafeDelayDays >= 0, "SAFE_DELAY_DAYS must be >= 0"},
		{c.TotalDays > 0, "TOTAL_DAYS must be > 0"},
		{c.IntervalMinutes > 0 && 1440%c.IntervalMinutes == 0, "INTERVAL_MINUTES must evenly divide a day"},
		{c.CheckpointEvery > 0, "CHECKPOINT_EVERY must be > 0"},
		{c.MaxChunkFrames > 0, "MAX_CHUNK_FRAMES must be > 0"},
		{c.MinFreeDiskGiB > 0, "MIN_FREE_DISK_GIB must be > 0"},
		{c.LockStaleHours > 0, "LOCK_STALE_HOURS must be > 0"},
		{c.AbandonDays > 0, "ABANDON_DAYS must be > 0"},
		{c.FetchRetries > 0, "FETCH_RETRIES must be > 0"},
		{c.FetchTimeoutSec > 0, "FETCH_TIMEOUT_SECONDS must be > 0"},
		{c.MinBodyBytes > 0, "MIN_BODY_BYTES must be > 0"},
		{c.MinFrameFileBytes > 0, "MIN_FRAME_FILE_BYTES must be > 0"},
		{c.FFmpegPath != "", "FFMPEG_PATH must not be empty"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("config: %s", chk.msg)
		}
	}
	return nil
}
