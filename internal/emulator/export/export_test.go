package export

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
)

func sampleDocs(collection string, ids ...string) []store.Document {
	docs := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, store.Document{
			Collection: collection,
			ID:         id,
			Data:       json.RawMessage(`{"id":"` + id + `"}`),
			UpdateTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}
	return docs
}

func TestRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2026-01-02T03:04:05_1")
	w := NewWriter(dir)

	users, err := w.WriteCollection("users", sampleDocs("users", "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, users.Documents)
	assert.Equal(t, "all_namespaces/kind_users/output-0.export", users.Path)

	empty, err := w.WriteCollection("cities", nil)
	require.NoError(t, err)

	manifestPath, err := w.WriteManifest(Manifest{
		Database:    "projects/p/databases/(default)",
		Collections: []CollectionFile{users, empty},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-01-02T03:04:05_1.overall_export_metadata"), manifestPath)

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, m.Collections, 2)

	r, err := OpenReader(filepath.Join(dir, m.Collections[0].Path))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint32(3), r.DocCount())

	docs, err := r.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "b", docs[1].ID)
	assert.JSONEq(t, `{"id":"b"}`, string(docs[1].Data))

	d, ok, err := r.Lookup("c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "users", d.Collection)
	_, ok, err = r.Lookup("zz")
	require.NoError(t, err)
	assert.False(t, ok)

	er, err := OpenReader(filepath.Join(dir, empty.Path))
	require.NoError(t, err)
	defer er.Close()
	assert.Equal(t, uint32(0), er.DocCount())

	leftovers, err := filepath.Glob(filepath.Join(dir, "*", "*", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRejectsForeignDocuments(t *testing.T) {
	w := NewWriter(t.TempDir())
	_, err := w.WriteCollection("users", sampleDocs("cities", "sf"))
	assert.Error(t, err)
}

func TestDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	f, err := NewWriter(dir).WriteCollection("users", sampleDocs("users", "a", "b"))
	require.NoError(t, err)
	path := filepath.Join(dir, f.Path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[HeaderSize+2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = OpenReader(path)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))
	_, err = OpenReader(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestManifestErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadManifest(dir)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, os.WriteFile(ManifestPath(dir), []byte("{"), 0o644))
	_, err = ReadManifest(dir)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(ManifestPath(dir),
		[]byte(`{"collections":[{"collection":"x","path":"../../etc/passwd"}]}`), 0o644))
	_, err = ReadManifest(dir)
	assert.ErrorIs(t, err, ErrCorrupt)
}
