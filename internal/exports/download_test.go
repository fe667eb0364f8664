package exports

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractZIP(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "export.zip")
	data := buildZip(t, map[string]string{
		"acme_messages.csv": "to,from,createdAt\n",
		"acme_contacts.csv": "firstName\n",
	})
	require.NoError(t, os.WriteFile(zipPath, data, 0o644))

	dest := filepath.Join(dir, "export")
	require.NoError(t, ExtractZIP(zipPath, dest))

	got, err := os.ReadFile(filepath.Join(dest, "acme_messages.csv"))
	require.NoError(t, err)
	assert.Equal(t, "to,from,createdAt\n", string(got))
}

func TestExtractZIPRejectsSlip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	data := buildZip(t, map[string]string{"../outside.txt": "nope"})
	require.NoError(t, os.WriteFile(zipPath, data, 0o644))

	err := ExtractZIP(zipPath, filepath.Join(dir, "dest"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal archive path")
}

func TestDownloadArchive(t *testing.T) {
	t.Parallel()

	data := buildZip(t, map[string]string{"ws_messages.csv": "to,from,createdAt\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	root := t.TempDir()
	extracted, err := DownloadArchive(context.Background(), srv.URL+"/exports/ws-export.zip?sig=abc", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ws-export"), extracted)

	path, err := FindMessagesCSV(extracted)
	require.NoError(t, err)
	assert.Contains(t, path, "ws_messages.csv")
}

func TestDownloadArchiveBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := DownloadArchive(context.Background(), srv.URL+"/exports/x.zip", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
