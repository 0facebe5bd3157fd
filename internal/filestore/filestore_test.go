package filestore_test

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/runbox/runbox/internal/filestore"
	"github.com/stretchr/testify/require"
)

func sha(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

func newTestStore(t *testing.T) *filestore.Store {
	t.Helper()
	fs := filestore.New(t.TempDir(), t.TempDir())
	go fs.Start()
	return fs
}

func TestStoreDownload(t *testing.T) {
	content := []byte("315941512 -119267504\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	fs := newTestStore(t)

	err := fs.Schedule(sha(content), srv.URL+"/seed.txt")
	require.NoError(t, err)

	// scheduling the same key twice is a no-op
	err = fs.Schedule(sha(content), srv.URL+"/seed.txt")
	require.NoError(t, err)

	body, err := fs.Await(sha(content))
	require.NoError(t, err)
	require.Equal(t, content, body)
}

func TestStoreIntegrityMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not what was promised"))
	}))
	defer srv.Close()

	fs := newTestStore(t)

	wrongKey := "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	err := fs.Schedule(wrongKey, srv.URL+"/seed.txt")
	require.NoError(t, err)

	_, err = fs.Await(wrongKey)
	require.Error(t, err)
}

func TestStoreAwaitUnscheduled(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.Await("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.Error(t, err)
}

func TestStoreZstdDecompress(t *testing.T) {
	content := []byte("196674008\n")

	var compressed []byte
	{
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed = enc.EncodeAll(content, nil)
		require.NoError(t, enc.Close())
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zstd")
		_, _ = w.Write(compressed)
	}))
	defer srv.Close()

	fs := newTestStore(t)

	// the cache key is the sha of the decompressed content
	err := fs.Schedule(sha(content), srv.URL+"/seed.zst")
	require.NoError(t, err)

	body, err := fs.Await(sha(content))
	require.NoError(t, err)
	require.Equal(t, content, body)
}

func TestStorePut(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(dir, t.TempDir())

	content := []byte("inline seed")
	key, err := fs.Put(content)
	require.NoError(t, err)
	require.Equal(t, sha(content), key)

	onDisk, err := os.ReadFile(dir + "/" + key)
	require.NoError(t, err)
	require.Equal(t, content, onDisk)
}
