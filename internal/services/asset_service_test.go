package services_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
	"photobooth-kiosk/internal/testutil"
)

func newAssetService(storage *testutil.MockObjectStorage, merger *testutil.MockMerger) *services.AssetService {
	opts := services.DefaultAssetOptions()
	opts.RetryDelay = time.Millisecond
	return services.NewAssetService(storage, merger, opts, nil)
}

func stateOf(states []services.AssetState, a store.Asset) services.AssetState {
	for _, s := range states {
		if s.Asset == a {
			return s
		}
	}
	return services.AssetState{}
}

func TestAssetService_UploadFinalIsIdempotent(t *testing.T) {
	storage := testutil.NewMockObjectStorage()
	svc := newAssetService(storage, &testutil.MockMerger{})
	txID := uuid.New()
	svc.Begin(txID)

	url, err := svc.UploadFinal(context.Background(), testutil.Solid(20, 30, color.White))
	require.NoError(t, err)
	assert.Contains(t, url, store.AssetPath(txID, store.AssetFinal))

	again, err := svc.UploadFinal(context.Background(), testutil.Solid(20, 30, color.White))
	require.NoError(t, err)
	assert.Equal(t, url, again)
	assert.Equal(t, 1, storage.UploadCalls(store.AssetPath(txID, store.AssetFinal)))

	data, ok := storage.Object(store.AssetPath(txID, store.AssetFinal))
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestAssetService_UploadFinalRetriesOnce(t *testing.T) {
	storage := testutil.NewMockObjectStorage()
	calls := 0
	storage.UploadFunc = func(ctx context.Context, path string, data []byte, contentType string) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}
	svc := newAssetService(storage, &testutil.MockMerger{})
	svc.Begin(uuid.New())

	_, err := svc.UploadFinal(context.Background(), testutil.Solid(10, 10, color.Black))

	require.NoError(t, err)
	st := svc.State(store.AssetFinal)
	assert.Equal(t, services.AssetSuccess, st.Status)
	assert.Equal(t, 2, st.Attempts)
}

func TestAssetService_UploadFinalFailsAfterRetry(t *testing.T) {
	storage := testutil.NewMockObjectStorage()
	storage.FailPaths("final.png")
	svc := newAssetService(storage, &testutil.MockMerger{})
	txID := uuid.New()
	svc.Begin(txID)

	_, err := svc.UploadFinal(context.Background(), testutil.Solid(10, 10, color.Black))

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUploadFailed)
	var uploadErr *models.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, store.AssetPath(txID, store.AssetFinal), uploadErr.Path)
	assert.Equal(t, 2, storage.UploadCalls(store.AssetPath(txID, store.AssetFinal)))
	assert.Equal(t, services.AssetError, svc.State(store.AssetFinal).Status)
	assert.False(t, svc.State(store.AssetFinal).Available())
}

func TestAssetService_BackgroundJobs(t *testing.T) {
	storage := testutil.NewMockObjectStorage()
	merger := &testutil.MockMerger{}
	svc := newAssetService(storage, merger)
	txID := uuid.New()
	svc.Begin(txID)

	stills := []image.Image{testutil.Solid(30, 40, color.RGBA{R: 255, A: 255}), testutil.Solid(30, 40, color.RGBA{G: 255, A: 255}), testutil.Solid(30, 40, color.RGBA{B: 255, A: 255})}
	svc.StartBackgroundJobs(stills, testutil.Clips(3))
	svc.Wait()

	states := svc.States()
	assert.Equal(t, services.AssetSuccess, stateOf(states, store.AssetAnimation).Status)
	assert.Equal(t, services.AssetSuccess, stateOf(states, store.AssetVideo).Status)
	assert.Equal(t, 1, merger.Calls())

	data, ok := storage.Object(store.AssetPath(txID, store.AssetAnimation))
	require.True(t, ok)
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, anim.Image, 3)
	for _, d := range anim.Delay {
		assert.Equal(t, 50, d)
	}

	// Re-entering delivery does not start the jobs again.
	svc.StartBackgroundJobs(stills, testutil.Clips(3))
	svc.Wait()
	assert.Equal(t, 1, merger.Calls())
	assert.Equal(t, 1, storage.UploadCalls(store.AssetPath(txID, store.AssetVideo)))
}

func TestAssetService_VideoFailureLeavesAnimation(t *testing.T) {
	storage := testutil.NewMockObjectStorage()
	storage.FailPaths("video.webm")
	svc := newAssetService(storage, &testutil.MockMerger{})
	txID := uuid.New()
	svc.Begin(txID)

	svc.StartBackgroundJobs([]image.Image{testutil.Solid(8, 8, color.White)}, testutil.Clips(1))
	svc.Wait()

	assert.True(t, svc.State(store.AssetAnimation).Available())
	video := svc.State(store.AssetVideo)
	assert.Equal(t, services.AssetError, video.Status)
	assert.Equal(t, 2, video.Attempts)
	assert.NotEmpty(t, video.LastError)
}

func TestAssetService_NoClipsSkipsVideo(t *testing.T) {
	merger := &testutil.MockMerger{}
	svc := newAssetService(testutil.NewMockObjectStorage(), merger)
	svc.Begin(uuid.New())

	svc.StartBackgroundJobs([]image.Image{testutil.Solid(8, 8, color.White)}, nil)
	svc.Wait()

	assert.Equal(t, services.AssetSkipped, svc.State(store.AssetVideo).Status)
	assert.Equal(t, 0, merger.Calls())
	assert.False(t, svc.VideoStarted())
}

func TestAssetService_NoStillsFailsAnimation(t *testing.T) {
	svc := newAssetService(testutil.NewMockObjectStorage(), &testutil.MockMerger{})
	svc.Begin(uuid.New())

	svc.StartBackgroundJobs(nil, nil)
	svc.Wait()

	st := svc.State(store.AssetAnimation)
	assert.Equal(t, services.AssetError, st.Status)
	assert.Contains(t, st.LastError, "no frames")
}

func TestAssetService_InvalidateDiscardsStaleResults(t *testing.T) {
	merger := &testutil.MockMerger{Delay: 50 * time.Millisecond}
	svc := newAssetService(testutil.NewMockObjectStorage(), merger)
	svc.Begin(uuid.New())

	svc.StartBackgroundJobs([]image.Image{testutil.Solid(8, 8, color.White)}, testutil.Clips(2))
	svc.Invalidate()
	svc.Wait()

	for _, st := range svc.States() {
		assert.Equal(t, services.AssetIdle, st.Status, string(st.Asset))
	}
}

func TestAssetService_OnChange(t *testing.T) {
	svc := newAssetService(testutil.NewMockObjectStorage(), &testutil.MockMerger{})
	txID := uuid.New()
	svc.Begin(txID)

	var seen []services.AssetState
	svc.OnChange(func(id uuid.UUID, st services.AssetState) {
		assert.Equal(t, txID, id)
		seen = append(seen, st)
	})

	_, err := svc.UploadFinal(context.Background(), testutil.Solid(4, 4, color.White))
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, store.AssetFinal, seen[0].Asset)
	assert.Equal(t, services.AssetSuccess, seen[0].Status)
}

func TestAssetService_SignedAssets(t *testing.T) {
	storage := testutil.NewMockObjectStorage()
	svc := newAssetService(storage, &testutil.MockMerger{})
	txID := uuid.New()
	ctx := context.Background()

	require.NoError(t, storage.Upload(ctx, store.AssetPath(txID, store.AssetFinal), []byte("png"), "image/png"))
	require.NoError(t, storage.Upload(ctx, store.AssetPath(txID, store.AssetVideo), []byte("webm"), "video/webm"))
	require.NoError(t, storage.Upload(ctx, store.TransactionPrefix(txID)+"/notes.txt", []byte("x"), "text/plain"))

	assets, err := svc.SignedAssets(ctx, txID)

	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, store.AssetFinal, assets[0].Asset)
	assert.Equal(t, store.AssetVideo, assets[1].Asset)
	assert.True(t, assets[0].Available())

	_, err = svc.SignedAssets(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
