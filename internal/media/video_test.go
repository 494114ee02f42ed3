package media_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/media"
	"photobooth-kiosk/internal/models"
)

func writeClip(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestUsableClips_SkipsBrokenAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	clips := []*models.Clip{
		{Index: 0, Path: writeClip(t, dir, "0.webm", 10)},
		{Index: 1, Path: filepath.Join(dir, "missing.webm")},
		nil,
		{Index: 3, Path: writeClip(t, dir, "3.webm", 0)},
		{Index: 4, Path: writeClip(t, dir, "4.webm", 10)},
	}

	usable := media.UsableClips(clips)

	require.Len(t, usable, 2)
	assert.Equal(t, 0, usable[0].Index)
	assert.Equal(t, 4, usable[1].Index)
}

func TestFFmpegMerger_NoClipsIsSkipped(t *testing.T) {
	m := &media.FFmpegMerger{}

	_, err := m.Merge(context.Background(), []*models.Clip{{Path: "/does/not/exist.webm"}})

	assert.ErrorIs(t, err, media.ErrNoClips)
}

func TestBuildMergeArgs(t *testing.T) {
	t.Run("video only", func(t *testing.T) {
		args := media.BuildMergeArgs([]*models.Clip{{Path: "a.webm"}, {Path: "b.webm", HasAudio: true}}, "out.webm")

		assert.Contains(t, args, "[0:v][1:v]concat=n=2:v=1:a=0[v]")
		assert.NotContains(t, args, "[a]")
		assert.Equal(t, "out.webm", args[len(args)-1])
	})
	t.Run("with audio", func(t *testing.T) {
		args := media.BuildMergeArgs([]*models.Clip{{Path: "a.webm", HasAudio: true}, {Path: "b.webm", HasAudio: true}}, "out.webm")

		assert.Contains(t, args, "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[v][a]")
		assert.Contains(t, args, "[a]")
		assert.Contains(t, args, "libopus")
	})
}

func TestRemoveClips(t *testing.T) {
	dir := t.TempDir()
	path := writeClip(t, dir, "0.webm", 4)

	media.RemoveClips([]*models.Clip{{Path: path}, {Path: "synthetic://clip-1.webm"}, nil})

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUsableClips_KeepsSyntheticClips(t *testing.T) {
	clips := []*models.Clip{{Index: 0, Path: media.SyntheticScheme + "clip-0.webm"}}

	assert.Len(t, media.UsableClips(clips), 1)

	_, err := (&media.FFmpegMerger{}).Merge(context.Background(), clips)
	assert.ErrorIs(t, err, media.ErrNoClips)
}
