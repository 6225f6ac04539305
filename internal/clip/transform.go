package clip

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/errors"
)

// tempExt is the temporary extension used while ffmpeg writes, so a crashed
// run never leaves a half-written file under the final name.
const tempExt = ".temp"

// durationTolerance absorbs encoder rounding above the requested duration.
const durationTolerance = 0.5

// trimOffsetSeconds is where the trim starts inside the raw file. Provider
// segments are already aligned to their capture time.
const trimOffsetSeconds = 0

// Transformer turns raw downloaded clips into archived ones: trimmed to the
// target duration, capped framerate, recompressed.
type Transformer struct {
	ffmpegPath      string
	ffprobePath     string
	exportPath      string
	targetDuration  int
	targetFramerate int
	crf             int
}

// NewTransformer creates a transcoder from the configured video settings.
func NewTransformer(settings *conf.Settings) *Transformer {
	v := settings.Video
	return &Transformer{
		ffmpegPath:      v.FfmpegPath,
		ffprobePath:     v.FfprobePath,
		exportPath:      v.ExportPath,
		targetDuration:  v.TargetDuration,
		targetFramerate: v.TargetFramerate,
		crf:             v.CRF,
	}
}

// Process transcodes rawPath into the export tree under the cam's directory
// and returns the stored clip record. The raw intermediate is deleted whether
// the transcode succeeds or not; the final file's mtime is stamped to the
// capture time so the archive sorts by it on disk.
func (t *Transformer) Process(ctx context.Context, camID, rawPath string, recordedAt time.Time) (datastore.VideoClip, error) {
	defer func() {
		if err := os.Remove(rawPath); err != nil && !os.IsNotExist(err) {
			clipLogger.Warn("Failed to remove raw clip", "path", rawPath, "error", err)
		}
	}()

	outputPath := filepath.Join(t.exportPath, camID, recordedAt.UTC().Format("20060102T150405")+".mp4")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return datastore.VideoClip{}, t.transcodeError(err, camID, rawPath, "create_export_dir")
	}

	tempPath := outputPath + tempExt
	if err := t.runFfmpeg(ctx, rawPath, tempPath); err != nil {
		t.removeTemp(tempPath)
		return datastore.VideoClip{}, t.transcodeError(err, camID, rawPath, "run_ffmpeg")
	}

	duration, err := t.verifyOutput(ctx, tempPath)
	if err != nil {
		t.removeTemp(tempPath)
		return datastore.VideoClip{}, t.transcodeError(err, camID, rawPath, "verify_output")
	}

	if err := os.Rename(tempPath, outputPath); err != nil {
		t.removeTemp(tempPath)
		return datastore.VideoClip{}, t.transcodeError(err, camID, rawPath, "finalize_output")
	}

	if err := os.Chtimes(outputPath, recordedAt, recordedAt); err != nil {
		clipLogger.Warn("Failed to stamp clip mtime", "path", outputPath, "error", err)
	}

	clipLogger.Debug("Transcoded clip",
		"cam_id", camID,
		"path", outputPath,
		"duration", duration,
	)

	return datastore.VideoClip{
		CamID:     camID,
		Timestamp: recordedAt.UTC(),
		Path:      outputPath,
		Duration:  duration,
		Status:    datastore.ClipStatusReady,
	}, nil
}

// runFfmpeg trims and recompresses rawPath into tempPath.
func (t *Transformer) runFfmpeg(ctx context.Context, rawPath, tempPath string) error {
	args := []string{
		"-ss", strconv.Itoa(trimOffsetSeconds),
		"-i", rawPath,
		"-t", strconv.Itoa(t.targetDuration),
		"-r", strconv.Itoa(t.targetFramerate),
		"-crf", strconv.Itoa(t.crf),
		"-y",
		tempPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(output))
	}
	return nil
}

// verifyOutput checks the transcoded file is non-empty and its probed
// duration is positive and within the target. The returned duration never
// exceeds the target.
func (t *Transformer) verifyOutput(ctx context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("transcoded file is empty")
	}

	duration, err := t.probeDuration(ctx, path)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("probed duration %.2fs is not positive", duration)
	}
	if duration > float64(t.targetDuration)+durationTolerance {
		return 0, fmt.Errorf("probed duration %.2fs exceeds target %ds", duration, t.targetDuration)
	}
	// Container probes can round a hair past the requested -t. The stored
	// duration is capped at the target so no clip record exceeds it.
	if duration > float64(t.targetDuration) {
		duration = float64(t.targetDuration)
	}
	return duration, nil
}

// probeDuration asks ffprobe for the container duration in seconds.
func (t *Transformer) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

func (t *Transformer) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		clipLogger.Warn("Failed to remove temporary transcode file", "path", path, "error", err)
	}
}

func (t *Transformer) transcodeError(err error, camID, rawPath, operation string) error {
	return errors.New(fmt.Errorf("%w: %w", ErrTranscodeFailed, err)).
		Component("clip").
		Category(errors.CategoryTranscode).
		Context("operation", operation).
		Context("cam_id", camID).
		Context("raw_path", rawPath).
		Build()
}

// lastLine returns the final non-empty line of command output, where ffmpeg
// puts the actual error.
func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
