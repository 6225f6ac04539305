package clip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/errors"
)

const downloadTimeout = 5 * time.Minute

// Acquirer downloads raw clip files from the provider CDN into the scratch
// directory.
type Acquirer struct {
	client       *http.Client
	maxRetries   int
	backoffBase  time.Duration
	backoffLimit time.Duration
}

// NewAcquirer creates a clip downloader from the configured retry bounds.
func NewAcquirer(settings *conf.Settings) *Acquirer {
	dl := settings.Video.Download
	return &Acquirer{
		client:       &http.Client{Timeout: downloadTimeout},
		maxRetries:   dl.MaxRetries,
		backoffBase:  time.Duration(dl.BackoffBase) * time.Second,
		backoffLimit: time.Duration(dl.BackoffLimit) * time.Second,
	}
}

// Download streams the clip at url to destPath and returns the byte count.
// Transient failures and truncated bodies are retried with exponential
// backoff; when every attempt fails the last error is wrapped in
// ErrAcquisitionFailed. A truncated file never survives on disk.
func (a *Acquirer) Download(ctx context.Context, url, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, errors.New(err).
			Component("clip").
			Category(errors.CategoryFileIO).
			Context("operation", "create_scratch_dir").
			Context("path", filepath.Dir(destPath)).
			Build()
	}

	var lastErr error
	backoff := a.backoffBase

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		written, err := a.downloadOnce(ctx, url, destPath)
		if err == nil {
			clipLogger.Debug("Downloaded clip",
				"url", url,
				"bytes", written,
				"attempt", attempt,
			)
			return written, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		clipLogger.Warn("Clip download attempt failed",
			"url", url,
			"attempt", attempt,
			"max_attempts", a.maxRetries,
			"error", err,
		)
		if attempt < a.maxRetries {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > a.backoffLimit {
				backoff = a.backoffLimit
			}
		}
	}

	return 0, errors.New(fmt.Errorf("%w: %s after %d attempts: %w", ErrAcquisitionFailed, url, a.maxRetries, lastErr)).
		Component("clip").
		Category(errors.CategoryDownload).
		Context("url", url).
		Context("max_retries", a.maxRetries).
		Build()
}

// downloadOnce performs a single download attempt. On any failure the partial
// destination file is removed.
func (a *Acquirer) downloadOnce(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			clipLogger.Debug("Failed to close download body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}

	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		a.removePartial(destPath)
		return 0, copyErr
	}
	if closeErr != nil {
		a.removePartial(destPath)
		return 0, closeErr
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		a.removePartial(destPath)
		return 0, fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteDownload, written, resp.ContentLength)
	}
	if written == 0 {
		a.removePartial(destPath)
		return 0, fmt.Errorf("%w: empty body", ErrIncompleteDownload)
	}

	return written, nil
}

func (a *Acquirer) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		clipLogger.Warn("Failed to remove partial download", "path", path, "error", err)
	}
}
