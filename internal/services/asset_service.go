package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/media"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/store"
)

type AssetStatus string

const (
	AssetIdle      AssetStatus = "idle"
	AssetUploading AssetStatus = "uploading"
	AssetSuccess   AssetStatus = "success"
	AssetError     AssetStatus = "error"
	// AssetSkipped marks a job with nothing to encode, such as a video
	// when no clip was recorded.
	AssetSkipped AssetStatus = "skipped"
)

// AssetState is one entry of the asset set. Success is terminal.
type AssetState struct {
	Asset     store.Asset `json:"asset"`
	Status    AssetStatus `json:"status"`
	URL       string      `json:"url,omitempty"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error,omitempty"`
}

func (s AssetState) Available() bool {
	return s.Status == AssetSuccess && s.URL != ""
}

type AssetOptions struct {
	SignedURLTTL int
	GIFDelay     time.Duration
	RetryDelay   time.Duration
	JobTimeout   time.Duration
}

func DefaultAssetOptions() AssetOptions {
	return AssetOptions{
		SignedURLTTL: 3600,
		GIFDelay:     media.DefaultGIFDelay,
		RetryDelay:   500 * time.Millisecond,
		JobTimeout:   2 * time.Minute,
	}
}

// AssetService encodes, uploads and signs the final image, the animation
// and the video for the current transaction.
type AssetService struct {
	storage store.ObjectStorage
	merger  media.Merger
	metrics *metrics.Metrics
	opts    AssetOptions

	mu         sync.Mutex
	txID       uuid.UUID
	generation uint64
	states     map[store.Asset]*AssetState
	videoTaken bool
	onChange   func(txID uuid.UUID, state AssetState)

	jobs sync.WaitGroup
}

func NewAssetService(storage store.ObjectStorage, merger media.Merger, opts AssetOptions, m *metrics.Metrics) *AssetService {
	def := DefaultAssetOptions()
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = def.SignedURLTTL
	}
	if opts.GIFDelay <= 0 {
		opts.GIFDelay = def.GIFDelay
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = def.JobTimeout
	}
	s := &AssetService{
		storage: storage,
		merger:  merger,
		metrics: m,
		opts:    opts,
	}
	s.states = freshStates()
	return s
}

func freshStates() map[store.Asset]*AssetState {
	states := make(map[store.Asset]*AssetState, len(store.Assets))
	for _, a := range store.Assets {
		states[a] = &AssetState{Asset: a, Status: AssetIdle}
	}
	return states
}

// OnChange registers a hook fired after every asset status change.
func (s *AssetService) OnChange(fn func(txID uuid.UUID, state AssetState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Begin starts a fresh asset set for txID. Jobs from the previous set keep
// running but their results are discarded.
func (s *AssetService) Begin(txID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txID = txID
	s.generation++
	s.states = freshStates()
	s.videoTaken = false
}

// Invalidate drops the current set without changing the transaction. It is
// called when a retake replaces a capture.
func (s *AssetService) Invalidate() {
	s.Begin(s.TransactionID())
}

func (s *AssetService) TransactionID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txID
}

// VideoStarted reports whether the current set has handed its clips to the
// video job. Clips not taken by a job are the caller's to clean up.
func (s *AssetService) VideoStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoTaken
}

// States returns the asset set in delivery order.
func (s *AssetService) States() []AssetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AssetState, 0, len(store.Assets))
	for _, a := range store.Assets {
		out = append(out, *s.states[a])
	}
	return out
}

func (s *AssetService) State(a store.Asset) AssetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[a]; ok {
		return *st
	}
	return AssetState{Asset: a, Status: AssetIdle}
}

// Wait blocks until every background job started so far has finished.
func (s *AssetService) Wait() {
	s.jobs.Wait()
}

// claim moves an idle asset to uploading and returns the generation the job
// belongs to. Failed background assets are not claimed again since the
// upload already had its retry; retryFailed lets a user-driven call through.
func (s *AssetService) claim(a store.Asset, retryFailed bool) (uuid.UUID, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[a]
	if st.Status != AssetIdle && !(retryFailed && st.Status == AssetError) {
		return uuid.Nil, 0, false
	}
	st.Status = AssetUploading
	st.LastError = ""
	return s.txID, s.generation, true
}

func (s *AssetService) settle(gen uint64, a store.Asset, status AssetStatus, url string, attempts int, err error) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug().Str("asset", string(a)).Msg("discarding result of invalidated asset job")
		return false
	}
	st := s.states[a]
	st.Status = status
	st.URL = url
	st.Attempts += attempts
	if err != nil {
		st.LastError = err.Error()
	}
	snapshot := *st
	txID, hook := s.txID, s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(txID, snapshot)
	}
	return true
}

// UploadFinal encodes the composited image as PNG, uploads it and returns
// its signed URL. A second call after success returns the same URL; a call
// after a failure tries again.
func (s *AssetService) UploadFinal(ctx context.Context, img image.Image) (string, error) {
	if st := s.State(store.AssetFinal); st.Status == AssetSuccess {
		return st.URL, nil
	}
	txID, gen, ok := s.claim(store.AssetFinal, true)
	if !ok {
		return "", fmt.Errorf("%w: final image is %s", models.ErrInvalidAction, s.State(store.AssetFinal).Status)
	}

	start := time.Now()
	data, err := compositor.EncodePNG(img)
	if err != nil {
		err = &models.EncodeError{Asset: string(store.AssetFinal), Err: err}
		s.settle(gen, store.AssetFinal, AssetError, "", 0, err)
		s.metrics.AssetJob(string(store.AssetFinal), string(AssetError), start)
		return "", err
	}

	url, attempts, err := s.upload(ctx, txID, store.AssetFinal, data)
	if err != nil {
		s.settle(gen, store.AssetFinal, AssetError, "", attempts, err)
		s.metrics.AssetJob(string(store.AssetFinal), string(AssetError), start)
		return "", err
	}
	s.settle(gen, store.AssetFinal, AssetSuccess, url, attempts, nil)
	s.metrics.AssetJob(string(store.AssetFinal), string(AssetSuccess), start)
	return url, nil
}

// StartBackgroundJobs encodes and uploads the animation and the video
// concurrently. It returns immediately; progress is visible through States.
// Assets already uploading or uploaded are left alone. Jobs run on their own
// context so a kiosk reset does not cancel them.
func (s *AssetService) StartBackgroundJobs(stills []image.Image, clips []*models.Clip) {
	var g errgroup.Group
	started := false

	if txID, gen, ok := s.claim(store.AssetAnimation, false); ok {
		started = true
		g.Go(func() error {
			return s.runJob(txID, gen, store.AssetAnimation, func(context.Context) ([]byte, error) {
				return media.EncodeGIF(stills, s.opts.GIFDelay)
			})
		})
	}

	if txID, gen, ok := s.claim(store.AssetVideo, false); ok {
		usable := media.UsableClips(clips)
		if len(usable) == 0 || s.merger == nil {
			s.settle(gen, store.AssetVideo, AssetSkipped, "", 0, nil)
			log.Info().Str("transaction_id", txID.String()).Msg("no clips recorded, skipping video")
		} else {
			started = true
			s.mu.Lock()
			s.videoTaken = true
			s.mu.Unlock()
			g.Go(func() error {
				defer media.RemoveClips(clips)
				return s.runJob(txID, gen, store.AssetVideo, func(ctx context.Context) ([]byte, error) {
					return s.merger.Merge(ctx, usable)
				})
			})
		}
	}

	if !started {
		return
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if err := g.Wait(); err != nil {
			log.Warn().Err(err).Msg("background asset job failed")
		}
	}()
}

func (s *AssetService) runJob(txID uuid.UUID, gen uint64, a store.Asset, encode func(context.Context) ([]byte, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	defer cancel()
	start := time.Now()

	data, err := encode(ctx)
	if err != nil {
		var encErr *models.EncodeError
		if !errors.As(err, &encErr) {
			err = &models.EncodeError{Asset: string(a), Err: err}
		}
		s.settle(gen, a, AssetError, "", 0, err)
		s.metrics.AssetJob(string(a), string(AssetError), start)
		return err
	}

	url, attempts, err := s.upload(ctx, txID, a, data)
	if err != nil {
		s.settle(gen, a, AssetError, "", attempts, err)
		s.metrics.AssetJob(string(a), string(AssetError), start)
		return err
	}
	s.settle(gen, a, AssetSuccess, url, attempts, nil)
	s.metrics.AssetJob(string(a), string(AssetSuccess), start)
	log.Info().
		Str("transaction_id", txID.String()).
		Str("asset", string(a)).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("asset uploaded")
	return nil
}

// upload writes the asset with one automatic retry and signs it.
func (s *AssetService) upload(ctx context.Context, txID uuid.UUID, a store.Asset, data []byte) (string, int, error) {
	objectPath := store.AssetPath(txID, a)
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return s.storage.Upload(ctx, objectPath, data, a.ContentType())
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(s.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.metrics.UploadRetry(string(a))
			log.Warn().Err(err).Str("path", objectPath).Uint("attempt", n+1).Msg("retrying upload")
		}),
	)
	if err != nil {
		return "", attempts, &models.UploadError{Path: objectPath, Err: err}
	}

	url, err := s.storage.SignedURL(ctx, objectPath, s.opts.SignedURLTTL)
	if err != nil {
		return "", attempts, &models.UploadError{Path: objectPath, Err: err}
	}
	return url, attempts, nil
}

// SignedAssets lists what exists under a transaction and signs each asset.
// It backs the download page and works for any past transaction.
func (s *AssetService) SignedAssets(ctx context.Context, txID uuid.UUID) ([]AssetState, error) {
	paths, err := s.storage.List(ctx, store.TransactionPrefix(txID))
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	present := make(map[store.Asset]string, len(paths))
	for _, p := range paths {
		if a, ok := store.AssetFromFile(path.Base(p)); ok {
			present[a] = p
		}
	}

	var out []AssetState
	for _, a := range store.Assets {
		objectPath, ok := present[a]
		if !ok {
			continue
		}
		url, err := s.storage.SignedURL(ctx, objectPath, s.opts.SignedURLTTL)
		if err != nil {
			log.Warn().Err(err).Str("path", objectPath).Msg("failed to sign asset")
			out = append(out, AssetState{Asset: a, Status: AssetError, LastError: err.Error()})
			continue
		}
		out = append(out, AssetState{Asset: a, Status: AssetSuccess, URL: url})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transaction %s has no assets: %w", txID, models.ErrNotFound)
	}
	return out, nil
}
