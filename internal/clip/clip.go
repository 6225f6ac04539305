// Package clip acquires raw surf cam video files and transcodes them into
// compact archived clips. Downloads stream to a scratch directory; ffmpeg
// trims, caps the framerate and recompresses into the export tree, atomically
// through a temporary file.
package clip

import (
	"io"
	"log/slog"

	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/logging"
)

// Package-level logger for clip acquisition and transcoding
var (
	clipLogger   *slog.Logger
	clipLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	clipLevelVar.Set(slog.LevelInfo)

	clipLogger, _, err = logging.NewFileLogger("logs/clip.log", "clip", clipLevelVar)
	if err != nil {
		logging.Error("Failed to initialize clip file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: clipLevelVar})
		clipLogger = slog.New(fbHandler).With("service", "clip")
	}
}

// Sentinel errors for clip processing
var (
	// ErrIncompleteDownload reports a body shorter than the advertised
	// Content-Length. The partial file is removed before this returns.
	ErrIncompleteDownload = errors.Newf("incomplete clip download").Component("clip").Category(errors.CategoryDownload).Build()

	// ErrAcquisitionFailed reports download retry exhaustion for one clip.
	ErrAcquisitionFailed = errors.Newf("clip acquisition failed").Component("clip").Category(errors.CategoryDownload).Build()

	// ErrTranscodeFailed reports an ffmpeg or verification failure. The raw
	// intermediate is removed before this returns.
	ErrTranscodeFailed = errors.Newf("clip transcode failed").Component("clip").Category(errors.CategoryTranscode).Build()
)
