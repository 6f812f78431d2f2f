package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileSuffix = ".json"

// File stores one JSON document per key under dir. Contents and timestamp
// live in the same file, and writes go through a temp file plus rename, so
// a concurrent Read sees the old entry, the new entry, or nothing.
type File struct {
	dir string
}

// NewFile creates dir (0700) if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

// pathFor hashes the key so any team name maps to a safe file name.
func (f *File) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:8])+fileSuffix)
}

func (f *File) Read(key string) (Entry, error) {
	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, err
	}
	// Guard against hash collisions.
	if e.Key != key {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (f *File) Write(key string, e Entry) error {
	e.Key = key
	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".entry-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, f.pathFor(key))
}

func (f *File) Delete(key string) error {
	err := os.Remove(f.pathFor(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) Prune(olderThan time.Time) (int, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}
		path := filepath.Join(f.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.Timestamp.Before(olderThan) {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				errs = append(errs, rmErr)
				continue
			}
			n++
		}
	}
	return n, errors.Join(errs...)
}
