package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/models"
)

var ErrNoClips = errors.New("no clips to merge")

// SyntheticScheme prefixes clips that exist only in memory.
const SyntheticScheme = "synthetic://"

// Merger joins per-slot clips into one video.
type Merger interface {
	Merge(ctx context.Context, clips []*models.Clip) ([]byte, error)
}

// FFmpegMerger re-encodes the clips in slot order into a single webm.
type FFmpegMerger struct {
	FFmpegPath string
	TempDir    string
}

func (m *FFmpegMerger) Merge(ctx context.Context, clips []*models.Clip) ([]byte, error) {
	var usable []*models.Clip
	for _, c := range UsableClips(clips) {
		if !strings.HasPrefix(c.Path, SyntheticScheme) {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoClips
	}

	ffmpegPath := m.FFmpegPath
	if ffmpegPath == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, &models.EncodeError{Asset: "video", Err: fmt.Errorf("ffmpeg not found in PATH: %w", err)}
		}
		ffmpegPath = p
	}

	out, err := os.CreateTemp(m.TempDir, "merged-*.webm")
	if err != nil {
		return nil, &models.EncodeError{Asset: "video", Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	outputPath := out.Name()
	out.Close()
	defer os.Remove(outputPath)

	args := BuildMergeArgs(usable, outputPath)
	log.Debug().Strs("args", args).Int("clips", len(usable)).Msg("running ffmpeg merge")

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &models.EncodeError{Asset: "video", Err: fmt.Errorf("ffmpeg merge failed: %w\nOutput: %s", err, string(output))}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, &models.EncodeError{Asset: "video", Err: fmt.Errorf("failed to read merged video: %w", err)}
	}
	log.Info().
		Int("clips", len(usable)).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("clips merged")
	return data, nil
}

// UsableClips keeps clips whose files exist and are non-empty, in order.
// Broken clips are dropped instead of failing the merge. Synthetic clips are
// always kept.
func UsableClips(clips []*models.Clip) []*models.Clip {
	var out []*models.Clip
	for _, c := range clips {
		if c == nil || c.Path == "" {
			continue
		}
		if strings.HasPrefix(c.Path, SyntheticScheme) {
			out = append(out, c)
			continue
		}
		info, err := os.Stat(c.Path)
		if err != nil || info.Size() == 0 {
			log.Warn().Str("path", c.Path).Int("slot", c.Index).Msg("skipping unreadable clip")
			continue
		}
		out = append(out, c)
	}
	return out
}

// BuildMergeArgs concatenates inputs with the concat filter. Audio is only
// mapped when every clip carries it.
func BuildMergeArgs(clips []*models.Clip, outputPath string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	withAudio := len(clips) > 0
	for _, c := range clips {
		args = append(args, "-i", c.Path)
		withAudio = withAudio && c.HasAudio
	}

	var filter strings.Builder
	for i := range clips {
		if withAudio {
			fmt.Fprintf(&filter, "[%d:v][%d:a]", i, i)
		} else {
			fmt.Fprintf(&filter, "[%d:v]", i)
		}
	}
	audio := 0
	if withAudio {
		audio = 1
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=%d[v]", len(clips), audio)
	if withAudio {
		filter.WriteString("[a]")
	}

	args = append(args, "-filter_complex", filter.String(), "-map", "[v]")
	if withAudio {
		args = append(args, "-map", "[a]", "-c:a", "libopus")
	}
	args = append(args, "-c:v", "libvpx", "-b:v", "2M", "-deadline", "good", outputPath)
	return args
}

// RemoveClips deletes clip files from disk.
func RemoveClips(clips []*models.Clip) {
	for _, c := range clips {
		if c == nil || c.Path == "" || strings.HasPrefix(c.Path, SyntheticScheme) {
			continue
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", c.Path).Msg("failed to remove clip")
		}
	}
}
