// Package fetch retrieves a single source image at a target instant from
// the upstream science API, with linear-backoff retry and temporal
// fallback search against the Duplicate Registry (spec.md §4.2).
package fetch

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/solarlapse/heliopipe/internal/clock"
	"github.com/solarlapse/heliopipe/internal/dedupe"
	"github.com/solarlapse/heliopipe/internal/errs"
	"github.com/solarlapse/heliopipe/internal/source"
)

// Result is what a successful (or best-effort duplicate) fetch produces.
type Result struct {
	Bytes         []byte
	Fingerprint   dedupe.Fingerprint
	ActualTime    time.Time
	OffsetApplied int
	SourceKind    source.Kind
	// Duplicate marks a best-effort result returned after every fallback
	// offset was rejected by the Duplicate Registry.
	Duplicate bool
}

// Config bounds retry and validation behavior.
type Config struct {
	Retries          int // attempts per (target, offset) pair
	BaseDelay        time.Duration
	Timeout          time.Duration
	MinBodyBytes     int64
	UpstreamBaseURL  string
}

// Fetcher retrieves images from the upstream HTTP API.
type Fetcher struct {
	cfg    Config
	client *resty.Client
	log    zerolog.Logger
}

// New builds a Fetcher against the given base URL.
func New(cfg Config, log zerolog.Logger) *Fetcher {
	client := resty.New().
		SetBaseURL(cfg.UpstreamBaseURL).
		SetTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, client: client, log: log}
}

// Fetch tries spec.FallbackOffsetsMinutes in declared order (not by
// magnitude) until one offset produces a valid body the Duplicate Registry
// accepts. If every offset is rejected as a duplicate, the last
// duplicate-rejected result is returned with Duplicate=true and a nil
// error. If every offset fails outright, an *errs.Error with Kind
// Unavailable or InvalidImage is returned.
func (f *Fetcher) Fetch(ctx context.Context, target clock.TargetInstant, spec source.Spec, registry *dedupe.Registry) (Result, error) {
	var bestEffort *Result
	var lastErr error

	for _, offsetMin := range spec.FallbackOffsetsMinutes {
		actual := target.UTCTime.Add(time.Duration(offsetMin) * time.Minute)
		body, err := f.fetchOneOffsetWithRetry(ctx, spec, actual)
		if err != nil {
			lastErr = err
			continue
		}

		result := Result{
			Bytes:         body,
			Fingerprint:   fingerprint(body),
			ActualTime:    actual,
			OffsetApplied: offsetMin,
			SourceKind:    spec.Kind,
		}

		decision := registry.Offer(spec.SourceID, result.Fingerprint, target.WindowIndex)
		if decision.Accepted {
			return result, nil
		}

		result.Duplicate = true
		bestEffort = &result
		f.log.Debug().
			Str("source", spec.Kind.String()).
			Int("window_index", target.WindowIndex).
			Int("offset_minutes", offsetMin).
			Int("duplicate_of", decision.DuplicateOfIndex).
			Msg("fallback offset rejected as duplicate")
	}

	if bestEffort != nil {
		return *bestEffort, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no offsets configured")
	}
	if kind, ok := errs.As(lastErr); ok {
		return Result{}, errs.New(kind, "fetch.Fetch", lastErr)
	}
	return Result{}, errs.New(errs.Unavailable, "fetch.Fetch", lastErr)
}

// fetchOneOffsetWithRetry performs up to cfg.Retries attempts for one
// (target, offset) pair with linearly increasing backoff.
func (f *Fetcher) fetchOneOffsetWithRetry(ctx context.Context, spec source.Spec, actual time.Time) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		body, err := f.fetchOnce(ctx, spec, actual)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if attempt < f.cfg.Retries {
			delay := time.Duration(attempt) * f.cfg.BaseDelay
			select {
			case <-ctx.Done():
				return nil, errs.New(errs.Unavailable, "fetch.retry", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

// fetchOnce issues a single HTTP GET and validates the response.
func (f *Fetcher) fetchOnce(ctx context.Context, spec source.Spec, actual time.Time) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"date":       actual.UTC().Format("2006-01-02T15:04:05Z"),
			"layers":     fmt.Sprintf("[%d,1,100]", spec.SourceID),
			"imageScale": fmt.Sprintf("%g", spec.ImageScaleArcsecPerPixel),
			"width":      fmt.Sprintf("%d", spec.Width),
			"height":     fmt.Sprintf("%d", spec.Height),
			"x0":         "0",
			"y0":         "0",
			"display":    "true",
			"watermark":  "false",
		}).
		Get("")
	if err != nil {
		return nil, errs.New(errs.Unavailable, "fetch.fetchOnce", err)
	}
	if resp.IsError() {
		return nil, errs.New(errs.Unavailable, "fetch.fetchOnce", fmt.Errorf("upstream status %d", resp.StatusCode()))
	}
	body := resp.Body()
	if int64(len(body)) < f.cfg.MinBodyBytes {
		return nil, errs.New(errs.InvalidImage, "fetch.fetchOnce", fmt.Errorf("body %d bytes below minimum %d", len(body), f.cfg.MinBodyBytes))
	}
	return body, nil
}

func fingerprint(body []byte) dedupe.Fingerprint {
	return md5.Sum(body)
}
