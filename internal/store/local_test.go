package store_test

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/store"
)

func newLocal(t *testing.T) *store.LocalStorage {
	t.Helper()
	s, err := store.NewLocalStorage(t.TempDir(), "http://kiosk.local/", []byte("secret"))
	require.NoError(t, err)
	return s
}

func tokenFrom(t *testing.T, signed string) string {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestLocalStorage_UploadListDownload(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.Upload(ctx, store.AssetPath(id, store.AssetFinal), []byte("png"), "image/png"))
	require.NoError(t, s.Upload(ctx, store.AssetPath(id, store.AssetAnimation), []byte("gif"), "image/gif"))

	files, err := s.List(ctx, store.TransactionPrefix(id))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"transactions/" + id.String() + "/animation.gif",
		"transactions/" + id.String() + "/final.png",
	}, files)

	data, err := s.Download(ctx, store.AssetPath(id, store.AssetFinal))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestLocalStorage_ListMissingPrefix(t *testing.T) {
	s := newLocal(t)

	files, err := s.List(context.Background(), store.TransactionPrefix(uuid.New()))

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorage_SignedURLRoundTrip(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	p := store.AssetPath(uuid.New(), store.AssetVideo)
	require.NoError(t, s.Upload(ctx, p, []byte("webm"), "video/webm"))

	signed, err := s.SignedURL(ctx, p, 3600)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "http://kiosk.local/api/v1/local-storage/"+p+"?token="))
	token := tokenFrom(t, signed)
	assert.NoError(t, s.Verify(p, token))
	assert.Error(t, s.Verify("transactions/other/video.webm", token))
	assert.Error(t, s.Verify(p, "not-a-token"))
}

func TestLocalStorage_ExpiredURL(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	p := "transactions/x/final.png"
	require.NoError(t, s.Upload(ctx, p, []byte("png"), "image/png"))

	signed, err := s.SignedURL(ctx, p, -10)
	require.NoError(t, err)

	assert.Error(t, s.Verify(p, tokenFrom(t, signed)))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := newLocal(t)

	err := s.Upload(context.Background(), "../escape.txt", []byte("x"), "text/plain")

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestLocalStorage_SignedURLMissingObject(t *testing.T) {
	s := newLocal(t)

	_, err := s.SignedURL(context.Background(), "transactions/none/final.png", 60)

	assert.ErrorIs(t, err, models.ErrNotFound)
}
