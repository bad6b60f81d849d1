// Package keys loads token signing secrets from a directory and reloads them
// when the files change.
package keys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"projgate.org/internal/auth"
	"projgate.org/internal/obs"
)

const (
	AccessKeyFile  = "access.key"
	RefreshKeyFile = "refresh.key"

	defaultDebounce = 500 * time.Millisecond
)

// Load reads both key files from dir.
func Load(dir string) (auth.KeySet, error) {
	access, err := readKey(filepath.Join(dir, AccessKeyFile))
	if err != nil {
		return auth.KeySet{}, err
	}
	refresh, err := readKey(filepath.Join(dir, RefreshKeyFile))
	if err != nil {
		return auth.KeySet{}, err
	}
	if bytes.Equal(access, refresh) {
		return auth.KeySet{}, errors.New("keys: access and refresh keys must differ")
	}
	return auth.KeySet{Access: access, Refresh: refresh}, nil
}

func readKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read %s: %w", filepath.Base(path), err)
	}
	key := bytes.TrimSpace(raw)
	if len(key) == 0 {
		return nil, fmt.Errorf("keys: %s is empty", filepath.Base(path))
	}
	return key, nil
}

// Watcher serves the most recently loaded key set. A failed reload keeps
// the previous keys.
type Watcher struct {
	dir      string
	debounce time.Duration
	current  atomic.Pointer[auth.KeySet]
}

var _ auth.KeySource = (*Watcher)(nil)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait for file events to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher loads the initial key set from dir.
func NewWatcher(dir string, opts ...Option) (*Watcher, error) {
	w := &Watcher{dir: dir, debounce: defaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Keys returns the current key set.
func (w *Watcher) Keys() auth.KeySet {
	return *w.current.Load()
}

// Reload rereads the key files.
func (w *Watcher) Reload() error {
	ks, err := Load(w.dir)
	if err != nil {
		return err
	}
	w.current.Store(&ks)
	return nil
}

// Run watches the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Reset(w.debounce)
			} else {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			if err := w.Reload(); err != nil {
				obs.Log("warn", "signing_keys_reload_failed", map[string]any{"error": err.Error()})
				continue
			}
			obs.Log("info", "signing_keys_reloaded", map[string]any{"dir": w.dir})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			obs.Log("error", "signing_keys_watcher_error", map[string]any{"error": err.Error()})
		}
	}
}
