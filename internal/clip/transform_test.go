package clip

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/errors"
)

// writeFakeTool writes an executable shell script standing in for ffmpeg or
// ffprobe.
func writeFakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// fakeFfmpeg copies its input to the last argument, like a transcode that
// succeeds.
const fakeFfmpegScript = `
out=""
for arg in "$@"; do out="$arg"; done
echo "transcoded" > "$out"
`

func transformerSettings(t *testing.T, probedDuration string) *conf.Settings {
	t.Helper()
	toolDir := t.TempDir()

	settings := &conf.Settings{}
	settings.Video.FfmpegPath = writeFakeTool(t, toolDir, "ffmpeg", fakeFfmpegScript)
	settings.Video.FfprobePath = writeFakeTool(t, toolDir, "ffprobe", `echo "`+probedDuration+`"`)
	settings.Video.ExportPath = filepath.Join(t.TempDir(), "clips")
	settings.Video.TargetDuration = 60
	settings.Video.TargetFramerate = 10
	settings.Video.CRF = 28
	return settings
}

func writeRawClip(t *testing.T) string {
	t.Helper()
	rawPath := filepath.Join(t.TempDir(), "raw.mp4")
	require.NoError(t, os.WriteFile(rawPath, []byte("raw payload"), 0o644))
	return rawPath
}

func TestTransformer_Process_Success(t *testing.T) {
	settings := transformerSettings(t, "59.84")
	transformer := NewTransformer(settings)

	rawPath := writeRawClip(t)
	recordedAt := time.Date(2023, 8, 27, 15, 12, 48, 0, time.UTC)

	clip, err := transformer.Process(context.Background(), "supertubos-main", rawPath, recordedAt)
	require.NoError(t, err)

	assert.Equal(t, "supertubos-main", clip.CamID)
	assert.Equal(t, recordedAt, clip.Timestamp)
	assert.InDelta(t, 59.84, clip.Duration, 0.001)
	assert.Equal(t, datastore.ClipStatusReady, clip.Status)

	wantPath := filepath.Join(settings.Video.ExportPath, "supertubos-main", "20230827T151248.mp4")
	assert.Equal(t, wantPath, clip.Path)

	info, err := os.Stat(clip.Path)
	require.NoError(t, err)
	assert.Equal(t, recordedAt, info.ModTime().UTC(), "mtime carries the capture time")

	_, rawErr := os.Stat(rawPath)
	assert.True(t, os.IsNotExist(rawErr), "raw intermediate is removed on success")

	_, tempErr := os.Stat(clip.Path + tempExt)
	assert.True(t, os.IsNotExist(tempErr), "temporary file is renamed away")
}

func TestTransformer_Process_FfmpegFailure(t *testing.T) {
	settings := transformerSettings(t, "60")
	settings.Video.FfmpegPath = writeFakeTool(t, t.TempDir(), "ffmpeg", `echo "boom" >&2; exit 1`)
	transformer := NewTransformer(settings)

	rawPath := writeRawClip(t)
	_, err := transformer.Process(context.Background(), "supertubos-main", rawPath, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscodeFailed))

	_, rawErr := os.Stat(rawPath)
	assert.True(t, os.IsNotExist(rawErr), "raw intermediate is removed on failure too")
}

func TestTransformer_Process_DurationClampedToTarget(t *testing.T) {
	settings := transformerSettings(t, "60.40")
	transformer := NewTransformer(settings)

	clip, err := transformer.Process(context.Background(), "supertubos-main", writeRawClip(t), time.Now().UTC())
	require.NoError(t, err)
	assert.InDelta(t, 60.0, clip.Duration, 0.001, "stored duration never exceeds the target")
}

func TestTransformer_Process_DurationBeyondTolerance(t *testing.T) {
	settings := transformerSettings(t, "60.51")
	transformer := NewTransformer(settings)

	_, err := transformer.Process(context.Background(), "supertubos-main", writeRawClip(t), time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscodeFailed))
}

func TestTransformer_Process_DurationTooLong(t *testing.T) {
	settings := transformerSettings(t, "75.0")
	transformer := NewTransformer(settings)

	_, err := transformer.Process(context.Background(), "supertubos-main", writeRawClip(t), time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscodeFailed))
}

func TestTransformer_Process_ZeroDuration(t *testing.T) {
	settings := transformerSettings(t, "0")
	transformer := NewTransformer(settings)

	_, err := transformer.Process(context.Background(), "supertubos-main", writeRawClip(t), time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscodeFailed))
}

func TestTransformer_Process_EmptyOutput(t *testing.T) {
	settings := transformerSettings(t, "60")
	// ffmpeg that creates an empty file
	settings.Video.FfmpegPath = writeFakeTool(t, t.TempDir(), "ffmpeg", `
out=""
for arg in "$@"; do out="$arg"; done
: > "$out"
`)
	transformer := NewTransformer(settings)

	_, err := transformer.Process(context.Background(), "supertubos-main", writeRawClip(t), time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscodeFailed))
}
