package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/model"
)

func newTestStore(t *testing.T, retain int) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs := New(filepath.Join(dir, "data.json"), filepath.Join(dir, "backups"), retain, zap.NewNop())
	return fs, dir
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs, _ := newTestStore(t, 0)
	doc, err := fs.Load()
	require.NoError(t, err)
	require.Empty(t, doc.Events)
	require.NotEmpty(t, doc.LastUpdated)
}

func TestFileStore_ReplaceAndLoad(t *testing.T) {
	fs, _ := newTestStore(t, 0)

	written, err := fs.Replace(Document{Events: []model.Event{{ID: "e1", Title: "Camp"}}})
	require.NoError(t, err)
	require.NotEmpty(t, written.LastUpdated)
	_, err = time.Parse(TimestampLayout, written.LastUpdated)
	require.NoError(t, err)

	doc, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, doc.Events, 1)
	require.Equal(t, "e1", doc.Events[0].ID)
}

func TestFileStore_LoadStripsBOM(t *testing.T) {
	fs, dir := newTestStore(t, 0)
	body := append([]byte("\xEF\xBB\xBF"), []byte(`  {"events":[{"id":"e1"}]}  `)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), body, 0o644))

	doc, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, doc.Events, 1)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	fs, dir := newTestStore(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte("{nope"), 0o644))

	_, err := fs.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid json format")
}

func TestFileStore_BackupOnReplace(t *testing.T) {
	fs, dir := newTestStore(t, 0)

	// first write has nothing to back up
	_, err := fs.Replace(Document{Events: []model.Event{{ID: "v1"}}})
	require.NoError(t, err)
	backups, _ := filepath.Glob(filepath.Join(dir, "backups", "data_backup_*.json"))
	require.Empty(t, backups)

	_, err = fs.Replace(Document{Events: []model.Event{{ID: "v2"}}})
	require.NoError(t, err)
	backups, _ = filepath.Glob(filepath.Join(dir, "backups", "data_backup_*.json"))
	require.Len(t, backups, 1)
}

func TestFileStore_BackupRetention(t *testing.T) {
	fs, dir := newTestStore(t, 2)
	// distinct timestamps so filenames never collide
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fs.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	for i := 0; i < 6; i++ {
		_, err := fs.Replace(Document{Events: []model.Event{{ID: "x"}}})
		require.NoError(t, err)
	}
	backups, _ := filepath.Glob(filepath.Join(dir, "backups", "data_backup_*.json"))
	require.Len(t, backups, 2)
}

func TestFileStore_UpdateAbortLeavesFile(t *testing.T) {
	fs, _ := newTestStore(t, 0)
	_, err := fs.Replace(Document{Events: []model.Event{{ID: "keep"}}})
	require.NoError(t, err)

	_, err = fs.Update(func(Document) (Document, error) {
		return Document{}, errors.New("validation failed")
	})
	require.Error(t, err)

	doc, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, doc.Events, 1)
	require.Equal(t, "keep", doc.Events[0].ID)
}

func TestFileStore_ModTime(t *testing.T) {
	fs, _ := newTestStore(t, 0)
	_, ok := fs.ModTime()
	require.False(t, ok)

	_, err := fs.Replace(Document{})
	require.NoError(t, err)
	ts, ok := fs.ModTime()
	require.True(t, ok)
	require.False(t, ts.IsZero())
}
