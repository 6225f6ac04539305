// Package rewind resolves downloadable surf cam rewind clip links. A
// provider's cam page lists the archived clips of the last few days; this
// package logs in, scrapes the page and returns CDN links with the capture
// time parsed out of each URL.
package rewind

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/logging"
)

// Package-level logger for rewind link resolution
var (
	rewindLogger   *slog.Logger
	rewindLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	rewindLevelVar.Set(slog.LevelInfo)

	rewindLogger, _, err = logging.NewFileLogger("logs/rewind.log", "rewind", rewindLevelVar)
	if err != nil {
		logging.Error("Failed to initialize rewind file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: rewindLevelVar})
		rewindLogger = slog.New(fbHandler).With("service", "rewind")
	}
}

// Sentinel errors for link resolution
var (
	// ErrAuthenticationFailed reports a rejected login. Fatal to the video
	// half of a run, the forecast half is unaffected.
	ErrAuthenticationFailed = errors.Newf("rewind authentication failed").Component("rewind").Category(errors.CategoryAuth).Build()

	// ErrNoLinksFound reports a cam page with no parseable clip links.
	// Non-fatal, the cam simply yields nothing this run.
	ErrNoLinksFound = errors.Newf("no rewind clip links found").Component("rewind").Category(errors.CategoryScraping).Build()
)

// ClipLink is one downloadable rewind clip: the CDN URL and the capture time
// encoded in it.
type ClipLink struct {
	URL       string
	Timestamp time.Time
}

// Window is the half-open capture time range a resolution call covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// LinkResolver resolves the downloadable clip links of one cam for a capture
// window. Implementations own their provider session.
type LinkResolver interface {
	ResolveClipLinks(ctx context.Context, cam *catalog.Cam, window Window) ([]ClipLink, error)
	Close() error
}
