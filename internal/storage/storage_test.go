package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	written, err := store.Save("alice_photo.jpg", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("jpeg bytes")), written)

	file, info, err := store.Open("alice_photo.jpg")
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	assert.Equal(t, written, info.Size())
}

func TestStoreSaveRefusesOverwrite(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("photo.png", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Save("photo.png", strings.NewReader("second"))
	assert.Error(t, err)
}

func TestStoreRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../escape.txt", "a/b.txt", `a\b.txt`, "..", "", "bad\x00name"} {
		t.Run(name, func(t *testing.T) {
			_, err := store.Resolve(name)
			assert.Error(t, err)
		})
	}
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("gone.gif", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove("gone.gif"))
	require.NoError(t, store.Remove("gone.gif"))

	_, statErr := os.Stat(filepath.Join(store.RootAbs(), "gone.gif"))
	assert.True(t, os.IsNotExist(statErr))
}
