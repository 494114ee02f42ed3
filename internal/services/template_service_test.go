package services_test

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
	"photobooth-kiosk/internal/testutil"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := compositor.EncodePNG(testutil.Solid(w, h, color.Transparent))
	require.NoError(t, err)
	return data
}

func TestTemplateService_LoadsArtworkFromBucket(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemoryStore()
	tpl := testutil.Template("strip", 0, 0, image.Rect(10, 10, 110, 160))
	tpl.FilePath = "strip.png"
	records.PutTemplate(tpl)

	bucket := testutil.NewMockObjectStorage()
	require.NoError(t, bucket.Upload(ctx, "strip.png", pngBytes(t, 600, 1800), "image/png"))

	svc := services.NewTemplateService(records, bucket, 3600)
	got, art, err := svc.Get(ctx, "strip")

	require.NoError(t, err)
	assert.Equal(t, 600, got.Width)
	assert.Equal(t, 1800, got.Height)
	assert.Equal(t, image.Rect(0, 0, 600, 1800), art.Bounds())
	assert.Contains(t, got.URL, "strip.png?ttl=3600")
}

func TestTemplateService_FetchesRemoteArtworkOnce(t *testing.T) {
	var hits atomic.Int32
	data := pngBytes(t, 40, 60)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	records := store.NewMemoryStore()
	tpl := testutil.Template("remote", 0, 0)
	tpl.FilePath = srv.URL + "/remote.png"
	records.PutTemplate(tpl)

	svc := services.NewTemplateService(records, nil, 0)
	for i := 0; i < 2; i++ {
		got, _, err := svc.Get(context.Background(), "remote")
		require.NoError(t, err)
		assert.Equal(t, tpl.FilePath, got.URL)
		assert.Equal(t, 40, got.Width)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestTemplateService_BrokenArtwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	records := store.NewMemoryStore()
	tpl := testutil.Template("broken", 100, 100)
	tpl.FilePath = srv.URL + "/broken.png"
	records.PutTemplate(tpl)

	_, _, err := services.NewTemplateService(records, nil, 0).Get(context.Background(), "broken")

	assert.ErrorIs(t, err, models.ErrInvalidTemplate)
}

func TestTemplateService_ListSkipsUnsignableURLs(t *testing.T) {
	records := store.NewMemoryStore()
	records.PutTemplate(testutil.Template("a", 100, 100))

	templates, err := services.NewTemplateService(records, nil, 0).List(context.Background())

	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Empty(t, templates[0].URL)
}

func TestTemplateService_Create(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemoryStore()
	bucket := testutil.NewMockObjectStorage()
	svc := services.NewTemplateService(records, bucket, 3600)

	tpl, err := svc.Create(ctx, services.NewTemplate{
		Name:     "Birthday Strip",
		Type:     models.Package2D,
		Slots:    []models.Slot{{ID: "a", X: 10, Y: 10, Width: 100, Height: 150}},
		FileName: "my frame.png",
		Artwork:  pngBytes(t, 600, 1800),
	})

	require.NoError(t, err)
	assert.Equal(t, 600, tpl.Width)
	assert.Equal(t, 1800, tpl.Height)
	assert.Regexp(t, `^frames/[0-9a-f-]{36}-my-frame\.png$`, tpl.FilePath)
	assert.NotEmpty(t, tpl.URL)

	_, ok := bucket.Object(tpl.FilePath)
	assert.True(t, ok)

	stored, art, err := svc.Get(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Birthday Strip", stored.Name)
	assert.Equal(t, 600, art.Bounds().Dx())
}

func TestTemplateService_CreateRejectsBadInput(t *testing.T) {
	svc := services.NewTemplateService(store.NewMemoryStore(), testutil.NewMockObjectStorage(), 3600)

	_, err := svc.Create(context.Background(), services.NewTemplate{Name: "x", FileName: "x.png", Artwork: []byte("not an image")})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Create(context.Background(), services.NewTemplate{Name: " ", Artwork: pngBytes(t, 10, 10)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Create(context.Background(), services.NewTemplate{Name: "x", Type: "8x10", Artwork: pngBytes(t, 10, 10)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
