package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/solarlapse/heliopipe/internal/clock"
	"github.com/solarlapse/heliopipe/internal/dedupe"
	"github.com/solarlapse/heliopipe/internal/errs"
	"github.com/solarlapse/heliopipe/internal/source"
)

func testSpec() source.Spec {
	return source.Spec{
		Kind:                     source.Corona,
		SourceID:                 4,
		ImageScaleArcsecPerPixel: 2.5,
		Width:                    1920,
		Height:                   1920,
		FallbackOffsetsMinutes:   []int{0, -3, 3},
	}
}

func newFetcher(t *testing.T, url string) *Fetcher {
	t.Helper()
	return New(Config{
		Retries:         3,
		BaseDelay:       time.Millisecond,
		Timeout:         5 * time.Second,
		MinBodyBytes:    4,
		UpstreamBaseURL: url,
	}, zerolog.Nop())
}

func TestFetchHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("valid-image-bytes"))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	reg := dedupe.New()
	target := clock.TargetInstant{WindowIndex: 0, UTCTime: time.Now().UTC()}

	res, err := f.Fetch(context.Background(), target, testSpec(), reg)
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, 0, res.OffsetApplied)
}

func TestFetchInvalidImageTooSmall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	reg := dedupe.New()
	target := clock.TargetInstant{WindowIndex: 0, UTCTime: time.Now().UTC()}

	_, err := f.Fetch(context.Background(), target, testSpec(), reg)
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidImage, kind)
}

func TestFetchAllOffsetsFailUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	reg := dedupe.New()
	target := clock.TargetInstant{WindowIndex: 0, UTCTime: time.Now().UTC()}

	_, err := f.Fetch(context.Background(), target, testSpec(), reg)
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.Unavailable, kind)
}

func TestFetchAllOffsetsDuplicateReturnsBestEffort(t *testing.T) {
	// Every offset returns the same body that a prior non-adjacent frame
	// already claimed, so each is rejected and the last one comes back as a
	// best-effort result marked Duplicate.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("same-body-always"))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	reg := dedupe.New()
	// Pre-seed the registry so windowIndex 0's fingerprint collides non-adjacently.
	reg.Offer(4, fingerprint([]byte("same-body-always")), 100)

	target := clock.TargetInstant{WindowIndex: 0, UTCTime: time.Now().UTC()}
	res, err := f.Fetch(context.Background(), target, testSpec(), reg)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
}

func TestFetchRetriesBeforeSucceeding(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("valid-image-bytes"))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL)
	reg := dedupe.New()
	target := clock.TargetInstant{WindowIndex: 0, UTCTime: time.Now().UTC()}

	res, err := f.Fetch(context.Background(), target, testSpec(), reg)
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}
