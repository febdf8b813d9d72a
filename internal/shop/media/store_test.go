package media_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/core/telegram/gateway/gatewaytest"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

func TestSaveNamesFilesByFileAndMessage(t *testing.T) {
	dir := t.TempDir()
	gw := gatewaytest.New()
	gw.DownloadBody = []byte("jpeg")
	store := media.New(dir, gw)

	photo, err := store.Save(context.Background(), media.Products, media.Upload{Kind: model.MediaPhoto, FileID: "AgAD", MessageID: 42})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "products", "AgAD_42.jpg"), photo)

	video, err := store.Save(context.Background(), media.Sections, media.Upload{Kind: model.MediaVideo, FileID: "BAAD", MessageID: 7})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sections", "BAAD_7.mp4"), video)

	body, err := os.ReadFile(photo)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(body))

	entries, err := os.ReadDir(filepath.Join(dir, "products"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed away")
	assert.Len(t, gw.CallsOf(gatewaytest.OpDownload), 2)
}

func TestSaveRejectsEmptyFileID(t *testing.T) {
	store := media.New(t.TempDir(), gatewaytest.New())
	_, err := store.Save(context.Background(), media.Products, media.Upload{Kind: model.MediaPhoto})
	assert.Error(t, err)
}

func TestRemoveCountsDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	store := media.New(dir, gatewaytest.New())
	n := store.Remove(context.Background(), a, filepath.Join(dir, "missing.jpg"), b, "")
	assert.Equal(t, 2, n)

	_, err := os.Stat(a)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(b)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveKeepsGoingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	require.NoError(t, os.MkdirAll(filepath.Join(full, "child"), 0o755))
	ok := filepath.Join(dir, "ok.jpg")
	require.NoError(t, os.WriteFile(ok, nil, 0o644))

	store := media.New(dir, gatewaytest.New())
	assert.Equal(t, 1, store.Remove(context.Background(), full, ok))
}

func TestRef(t *testing.T) {
	ref := media.Ref(model.Media{Kind: model.MediaVideo, FileID: "v", FilePath: "/m/v.mp4"})
	assert.Equal(t, gateway.Video, ref.Kind)
	assert.Equal(t, "v", ref.FileID)
	assert.Equal(t, "/m/v.mp4", ref.Path)
	assert.Equal(t, gateway.Photo, media.Ref(model.Media{Kind: model.MediaPhoto}).Kind)
}
