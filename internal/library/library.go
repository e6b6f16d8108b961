// Package library manages local music folders: the persisted folder list,
// scanning a folder into queue entries, and watching folders for changes.
package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/storage"
)

// audioExts are the file extensions Scan picks up.
var audioExts = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
}

// IsAudio reports whether path has a supported audio extension.
func IsAudio(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// Library is the folder list, persisted under storage.KeyLocalFolders.
type Library struct {
	kv     *storage.KV
	logger zerolog.Logger

	mu      sync.Mutex
	folders []string
}

// Open loads the persisted folder list.
func Open(ctx context.Context, kv *storage.KV, logger zerolog.Logger) (*Library, error) {
	l := &Library{
		kv:     kv,
		logger: logger.With().Str("component", "library").Logger(),
	}
	if _, err := kv.Get(ctx, storage.KeyLocalFolders, &l.folders); err != nil {
		return nil, fmt.Errorf("load folders: %w", err)
	}
	return l, nil
}

// Folders returns the folder list in insertion order.
func (l *Library) Folders() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.folders)
}

// AddFolder appends dir and reports whether it was new.
func (l *Library) AddFolder(ctx context.Context, dir string) (bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", dir, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.folders, abs) {
		return false, nil
	}
	next := append(slices.Clone(l.folders), abs)
	if err := l.kv.Set(ctx, storage.KeyLocalFolders, next); err != nil {
		return false, err
	}
	l.folders = next
	return true, nil
}

// RemoveFolder drops dir and reports whether it was present.
func (l *Library) RemoveFolder(ctx context.Context, dir string) (bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", dir, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.folders, abs)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(l.folders), i, i+1)
	if err := l.kv.Set(ctx, storage.KeyLocalFolders, next); err != nil {
		return false, err
	}
	l.folders = next
	return true, nil
}

// Scan walks dir and returns one local entry per audio file, ordered by
// path. Unreadable subdirectories are skipped.
func Scan(dir string) ([]queue.Entry, error) {
	var entries []queue.Entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudio(path) {
			return nil
		}
		entries = append(entries, Entry(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return entries, nil
}

// Entry builds the queue entry for a local file. The id is derived from the
// path, so every instance scanning the same file agrees on it.
func Entry(path string) queue.Entry {
	base := filepath.Base(path)
	return queue.Entry{
		ID:   "local:" + path,
		Kind: queue.KindLocal,
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}
}
