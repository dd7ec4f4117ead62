package store

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/gofrs/flock"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

const recordExt = ".yaml"

// Files is a Store keeping one YAML document per event in a directory.
// Writes go through a temp file and a rename, under an exclusive file lock
// per event so separate processes do not interleave.
type Files struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFiles creates a file store rooted at dir, creating it if needed.
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	return &Files{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the root directory.
func (f *Files) Dir() string { return f.dir }

func (f *Files) path(eventID string) string {
	return filepath.Join(f.dir, url.PathEscape(eventID)+recordExt)
}

func (f *Files) eventLock(eventID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[eventID] = l
	}
	return l
}

// Load implements Store.
func (f *Files) Load(ctx context.Context, eventID string) (*races.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := f.path(eventID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(eventID)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	var rec races.Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	if rec.Event.ExternalID == "" {
		rec.Event.ExternalID = eventID
	}
	return &rec, nil
}

// Save implements Store.
func (f *Files) Save(ctx context.Context, rec *races.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepare(rec); err != nil {
		return err
	}
	eventID := rec.Event.ExternalID

	l := f.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	path := f.path(eventID)
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return errors.WrapIO("lock", path, err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.WrapIO("write", path, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*"+recordExt)
	if err != nil {
		return errors.WrapIO("create", f.dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("close", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// List implements Store.
func (f *Files) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.WrapIO("read", f.dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, recordExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (f *Files) Close() error { return nil }
