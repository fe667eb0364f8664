package activity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMinMaxFold(t *testing.T) {
	t.Parallel()

	index := Build([]Message{
		{To: "(555) 111-2222", From: "+15559990000", CreatedAt: "2025-06-01T10:00:00Z"},
		{To: "+15559990000", From: "(555) 111-2222", CreatedAt: "2025-06-10T08:00:00Z"},
		{To: "555-111-2222", From: "+15559990000", CreatedAt: "2025-05-20T12:00:00Z"},
	})

	require.Contains(t, index, "5551112222")
	w := index["5551112222"]
	assert.Equal(t, "2025-05-20T12:00:00Z", w.FirstSeen.Format("2006-01-02T15:04:05Z"))
	assert.Equal(t, "2025-06-10T08:00:00Z", w.LastSeen.Format("2006-01-02T15:04:05Z"))

	// Both sides of each message contribute.
	require.Contains(t, index, "5559990000")
	for key, w := range index {
		assert.False(t, w.LastSeen.Before(w.FirstSeen), "key %s", key)
	}
}

func TestBuildSkipsBadTimestamps(t *testing.T) {
	t.Parallel()

	index := Build([]Message{
		{To: "5551112222", From: "5559990000", CreatedAt: "not-a-date"},
		{To: "5551112222", From: "5559990000", CreatedAt: ""},
		{To: "5551112222", From: "5559990000", CreatedAt: "2025-06-01T10:00:00Z"},
	})

	require.Len(t, index, 2)
	w := index["5551112222"]
	assert.Equal(t, w.FirstSeen, w.LastSeen)
}

func TestBuildSkipsEmptyKeys(t *testing.T) {
	t.Parallel()

	index := Build([]Message{
		{To: "", From: "no digits here", CreatedAt: "2025-06-01T10:00:00Z"},
	})
	assert.Empty(t, index)
}

func TestBuildFromCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "messages.csv")
	csv := "id,to,from,body,createdAt\n" +
		"m1,+15551112222,+15559990000,hi,2025-06-01T10:00:00Z\n" +
		"m2,+15559990000,+15551112222,yo,bad-timestamp\n" +
		"m3,+15559990000,+15551112222,ok,2025-06-03T10:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	index := BuildFromCSV(path)
	require.Contains(t, index, "5551112222")
	w := index["5551112222"]
	assert.Equal(t, 1, w.FirstSeen.Day())
	assert.Equal(t, 3, w.LastSeen.Day())
}

func TestBuildFromCSVMissingFile(t *testing.T) {
	t.Parallel()

	index := BuildFromCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Empty(t, index)
	assert.NotNil(t, index)
}

func TestBuildFromCSVMissingColumns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "messages.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	assert.Empty(t, BuildFromCSV(path))
}
