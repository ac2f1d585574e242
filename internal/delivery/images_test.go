package delivery

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageStoreSaveRawBase64(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	raw := []byte("not really a png")
	name, err := store.Save(base64.StdEncoding.EncodeToString(raw), "photo.png")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(name, ".png"))

	stored, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	require.Equal(t, raw, stored)
}

func TestImageStoreSaveDataURL(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8})
	name, err := store.Save(payload, "pic.jpeg")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(name, ".jpeg"))
}

func TestImageStoreSaveExtensionFallback(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(base64.StdEncoding.EncodeToString([]byte("x")), "noext")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(name, ".bin"))
}

func TestImageStoreSaveRejectsGarbage(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("%%% definitely not base64 %%%", "photo.png")
	require.ErrorIs(t, err, ErrInvalidImage)
}
