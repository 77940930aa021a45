// Package options persists harvest options as YAML and reloads them on change.
package options

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// ErrInvalidOptions wraps every validation failure.
var ErrInvalidOptions = errors.New("invalid options")

// Store holds the current options, backed by a YAML file.
type Store struct {
	path string

	mu      sync.RWMutex
	opts    domain.HarvestOptions
	modTime time.Time
}

// Load reads path. A missing file yields the defaults; it is created on
// the first Save.
func Load(path string) (*Store, error) {
	s := &Store{path: path, opts: domain.DefaultHarvestOptions()}
	if err := s.reload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Current returns a copy of the options.
func (s *Store) Current() domain.HarvestOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.opts)
}

// Save validates opts, writes them atomically and makes them current.
func (s *Store) Save(opts domain.HarvestOptions) error {
	if err := Validate(opts); err != nil {
		return err
	}
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create options dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".options-*.yaml")
	if err != nil {
		return fmt.Errorf("write options: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write options: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write options: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write options: %w", err)
	}

	info, err := os.Stat(s.path)
	s.mu.Lock()
	s.opts = clone(opts)
	if err == nil {
		s.modTime = info.ModTime()
	}
	s.mu.Unlock()
	return nil
}

// Validate rejects an inverted date window.
func Validate(opts domain.HarvestOptions) error {
	if opts.After != nil && opts.Before != nil && opts.After.After(*opts.Before) {
		return fmt.Errorf("%w: after %s is later than before %s", ErrInvalidOptions,
			opts.After.Format(time.DateOnly), opts.Before.Format(time.DateOnly))
	}
	return nil
}

// Watch polls the file every interval and reloads it when it changes,
// until ctx is done. Invalid edits are logged and ignored.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Refresh()
			if err != nil {
				log.GlobalWarn("options reload failed", "path", s.path, "error", err)
			} else if changed {
				log.GlobalInfo("options reloaded", "path", s.path)
			}
		}
	}
}

// Refresh reloads the file if its mtime moved forward.
func (s *Store) Refresh() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	s.mu.RLock()
	stale := info.ModTime().After(s.modTime)
	s.mu.RUnlock()
	if !stale {
		return false, nil
	}
	return true, s.reload()
}

func (s *Store) reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	opts := domain.DefaultHarvestOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if err := Validate(opts); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.opts = opts
	s.modTime = info.ModTime()
	s.mu.Unlock()
	return nil
}

func clone(o domain.HarvestOptions) domain.HarvestOptions {
	o.IDs = slices.Clone(o.IDs)
	o.Ignore = slices.Clone(o.Ignore)
	o.Keywords = slices.Clone(o.Keywords)
	if o.After != nil {
		t := *o.After
		o.After = &t
	}
	if o.Before != nil {
		t := *o.Before
		o.Before = &t
	}
	return o
}
