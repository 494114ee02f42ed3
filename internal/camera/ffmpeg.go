package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/models"
)

// FFmpegDevice reads a capture device through ffmpeg as raw RGBA frames.
type FFmpegDevice struct {
	FFmpegPath  string
	InputFormat string // v4l2, avfoundation, dshow
	Device      string
	Width       int
	Height      int
	FPS         int
	ClipDir     string
}

func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	ffmpegPath, err := ResolveFFmpeg(d.FFmpegPath)
	if err != nil {
		return nil, err
	}
	if d.Device == "" {
		return nil, errors.New("no capture device configured")
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", d.InputFormat,
		"-video_size", fmt.Sprintf("%dx%d", d.Width, d.Height),
		"-framerate", strconv.Itoa(d.FPS),
		"-i", d.Device,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}

	// The stream outlives ctx, so the process is not bound to it.
	cmd := exec.Command(ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		device: d,
		ffmpeg: ffmpegPath,
		cmd:    cmd,
		stderr: stderr,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.readLoop(stdout)

	// Wait for the first frame so a missing or busy device fails here.
	if _, err := s.Latest(ctx); err != nil {
		s.Close()
		return nil, err
	}

	log.Info().
		Str("device", d.Device).
		Str("format", d.InputFormat).
		Int("width", d.Width).
		Int("height", d.Height).
		Msg("ffmpeg capture started")
	return s, nil
}

type ffmpegStream struct {
	device *FFmpegDevice
	ffmpeg string
	cmd    *exec.Cmd
	stderr *syncBuffer

	mu        sync.Mutex
	latest    *Frame
	err       error
	recorder  *ffmpegRecording
	readyOnce sync.Once
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// syncBuffer collects ffmpeg stderr. exec copies into it from its own
// goroutine while readLoop may read it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *ffmpegStream) readLoop(r io.Reader) {
	defer close(s.done)

	frameSize := s.device.Width * s.device.Height * 4
	var seq uint64
	for {
		img := image.NewRGBA(image.Rect(0, 0, s.device.Width, s.device.Height))
		if _, err := io.ReadFull(r, img.Pix[:frameSize]); err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("camera feed ended: %w: %s", err, s.stderr.String())
			s.mu.Unlock()
			return
		}
		seq++

		s.mu.Lock()
		s.latest = &Frame{Image: img, Seq: seq, Timestamp: time.Now()}
		rec := s.recorder
		s.mu.Unlock()

		s.readyOnce.Do(func() { close(s.ready) })
		if rec != nil {
			rec.push(img.Pix)
		}
	}
}

func (s *ffmpegStream) Latest(ctx context.Context) (*Frame, error) {
	select {
	case <-s.ready:
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		if s.err != nil {
			return nil, s.err
		}
		return nil, errors.New("no frame available")
	}
	return s.latest, nil
}

func (s *ffmpegStream) Record(ctx context.Context, index int) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recorder != nil {
		return nil, errors.New("recording already in progress")
	}
	rec, err := startRecording(ctx, s.ffmpeg, s.device, index)
	if err != nil {
		return nil, err
	}
	rec.detach = func() {
		s.mu.Lock()
		if s.recorder == rec {
			s.recorder = nil
		}
		s.mu.Unlock()
	}
	s.recorder = rec
	return rec, nil
}

func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		rec := s.recorder
		s.mu.Unlock()
		if rec != nil {
			rec.Stop()
		}
		if s.cmd.Process != nil {
			err = s.cmd.Process.Kill()
		}
		s.cmd.Wait()
		<-s.done
	})
	return err
}

// ffmpegRecording pipes frames into a second ffmpeg encoding a webm clip.
type ffmpegRecording struct {
	index   int
	path    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	output  *bytes.Buffer
	frames  chan []byte
	written chan error
	started time.Time
	detach  func()

	mu     sync.Mutex
	closed bool

	once    sync.Once
	clip    *models.Clip
	err     error
}

func startRecording(ctx context.Context, ffmpegPath string, d *FFmpegDevice, index int) (*ffmpegRecording, error) {
	dir := d.ClipDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clip dir: %w", err)
	}
	f, err := os.CreateTemp(dir, fmt.Sprintf("clip-%d-*.webm", index))
	if err != nil {
		return nil, fmt.Errorf("failed to create clip file: %w", err)
	}
	path := f.Name()
	f.Close()

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", d.Width, d.Height),
		"-framerate", strconv.Itoa(d.FPS),
		"-i", "-",
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-b:v", "2M",
		path,
	}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to open recorder stdin: %w", err)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	rec := &ffmpegRecording{
		index:   index,
		path:    path,
		cmd:     cmd,
		stdin:   stdin,
		output:  &output,
		frames:  make(chan []byte, d.FPS*2),
		written: make(chan error, 1),
		started: time.Now(),
	}
	go rec.writeLoop()
	return rec, nil
}

// push hands a frame to the encoder, dropping it if the encoder is behind.
func (r *ffmpegRecording) push(pix []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.frames <- pix:
	default:
	}
}

func (r *ffmpegRecording) writeLoop() {
	var werr error
	for pix := range r.frames {
		if werr != nil {
			continue
		}
		if _, err := r.stdin.Write(pix); err != nil {
			werr = err
		}
	}
	r.stdin.Close()
	r.written <- werr
}

func (r *ffmpegRecording) Stop() (*models.Clip, error) {
	r.once.Do(func() {
		if r.detach != nil {
			r.detach()
		}
		r.mu.Lock()
		r.closed = true
		close(r.frames)
		r.mu.Unlock()
		werr := <-r.written
		waitErr := r.cmd.Wait()
		if err := errors.Join(werr, waitErr); err != nil {
			os.Remove(r.path)
			r.err = fmt.Errorf("clip recording failed: %w: %s", err, r.output.String())
			return
		}
		r.clip = &models.Clip{
			Index:     r.index,
			Path:      r.path,
			Duration:  time.Since(r.started),
			CreatedAt: time.Now(),
		}
	})
	return r.clip, r.err
}

// ResolveFFmpeg finds the ffmpeg binary, preferring an explicit path.
func ResolveFFmpeg(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("ffmpeg not found at %s: %w", configured, err)
		}
		return filepath.Clean(configured), nil
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return path, nil
}
