// Package document manages the server-side events file: the single JSON
// document the read and write endpoints operate on.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/model"
)

// TimestampLayout is the format for every timestamp the server writes.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultRetain is how many backups are kept before the oldest is pruned.
const DefaultRetain = 10

const backupPrefix = "data_backup_"

// Document is the on-disk shape of the events file.
type Document struct {
	Events      []model.Event `json:"events"`
	LastUpdated string        `json:"lastUpdated"`
}

// FileStore reads and replaces the document. Every replacement first copies
// the current file into a timestamped backup, then writes a temporary file
// and renames it into place, so concurrent readers never observe a
// half-written document.
type FileStore struct {
	path      string
	backupDir string
	retain    int
	log       *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

// New constructs a FileStore. A non-positive retain falls back to
// DefaultRetain.
func New(path, backupDir string, retain int, log *zap.Logger) *FileStore {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &FileStore{
		path:      path,
		backupDir: backupDir,
		retain:    retain,
		log:       log,
		now:       time.Now,
	}
}

// Load parses the document. A missing file yields an empty document, not
// an error.
func (f *FileStore) Load() (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) load() (Document, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return Document{
			Events:      []model.Event{},
			LastUpdated: f.now().Format(TimestampLayout),
		}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read data file: %w", err)
	}

	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\xEF\xBB\xBF")))
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("invalid json format: %w", err)
	}
	if doc.Events == nil {
		doc.Events = []model.Event{}
	}
	return doc, nil
}

// Replace backs up the current file, stamps the document, and atomically
// swaps it into place.
func (f *FileStore) Replace(doc Document) (Document, error) {
	return f.Update(func(Document) (Document, error) {
		return doc, nil
	})
}

// Update applies fn to the current document and replaces the file with the
// result under one lock acquisition.
func (f *FileStore) Update(fn func(Document) (Document, error)) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load()
	if err != nil {
		return Document{}, err
	}
	next, err := fn(current)
	if err != nil {
		return Document{}, err
	}

	if err := f.backup(); err != nil {
		return Document{}, err
	}
	if next.Events == nil {
		next.Events = []model.Event{}
	}
	next.LastUpdated = f.now().Format(TimestampLayout)

	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("encode data file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return Document{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return Document{}, fmt.Errorf("replace data file: %w", err)
	}
	f.log.Info("data file replaced", zap.Int("events", len(next.Events)))
	return next, nil
}

// ModTime reports the data file's modification time for conditional reads.
func (f *FileStore) ModTime() (time.Time, bool) {
	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// backup copies the current file aside and prunes old copies beyond the
// retention count. A missing data file needs no backup.
func (f *FileStore) backup() error {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(f.backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := backupPrefix + f.now().Format("2006-01-02_15-04-05") + ".json"
	if err := copyFile(f.path, filepath.Join(f.backupDir, name)); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	backups, err := filepath.Glob(filepath.Join(f.backupDir, backupPrefix+"*.json"))
	if err != nil {
		return nil
	}
	if len(backups) <= f.retain {
		return nil
	}
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-f.retain] {
		if err := os.Remove(old); err != nil {
			f.log.Warn("prune backup", zap.String("file", old), zap.Error(err))
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
