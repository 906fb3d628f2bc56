// Package watch re-runs builds when module sources change
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/properties"
	"github.com/poltergeist/reactor/pkg/types"
)

// DefaultSettlingDelay is how long the tree must stay quiet before a rebuild
const DefaultSettlingDelay = 300 * time.Millisecond

// defaultExcludedNames are directory names never watched
var defaultExcludedNames = []string{".git", ".svn", ".hg", ".idea", ".vscode", "node_modules", properties.DefaultBuildDirName}

// Watcher collects file changes under a set of roots and reports them in
// settled batches
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	settling time.Duration

	mu           sync.RWMutex
	excludedName map[string]bool
	excludedDirs []string
	ignore       []string
	matcher      *matcher
	watched      map[string]bool
}

// Option configures a Watcher
type Option func(*Watcher)

// WithSettlingDelay sets the quiet period before a batch is reported
func WithSettlingDelay(d time.Duration) Option {
	return func(w *Watcher) { w.settling = d }
}

// WithExcludedDirs excludes directories and everything below them
func WithExcludedDirs(dirs ...string) Option {
	return func(w *Watcher) {
		for _, d := range dirs {
			if abs, err := filepath.Abs(d); err == nil {
				w.excludedDirs = append(w.excludedDirs, abs)
			}
		}
	}
}

// WithIgnorePatterns ignores files and directories matching any glob
func WithIgnorePatterns(patterns ...string) Option {
	return func(w *Watcher) { w.ignore = append(w.ignore, patterns...) }
}

// New creates a watcher
func New(log logger.Logger, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		logger:       logger.OrNop(log),
		settling:     DefaultSettlingDelay,
		excludedName: make(map[string]bool),
		watched:      make(map[string]bool),
	}
	for _, name := range defaultExcludedNames {
		w.excludedName[name] = true
	}
	for _, opt := range opts {
		opt(w)
	}

	m, err := newMatcher(w.ignore)
	if err != nil {
		return nil, err
	}
	w.matcher = m

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.watcher = fw
	return w, nil
}

// ForModules creates a watcher over every module base directory, with each
// module's build directory excluded
func ForModules(modules []*types.Module, log logger.Logger, opts ...Option) (*Watcher, error) {
	var build []string
	for _, m := range modules {
		if m.BaseDir != "" {
			build = append(build, filepath.Join(m.BaseDir, properties.DefaultBuildDirName))
		}
	}
	w, err := New(log, append(opts, WithExcludedDirs(build...))...)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		if m.BaseDir == "" {
			continue
		}
		if err := w.Add(m.BaseDir); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Add watches root and its subdirectories
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	return filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isExcluded(path) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		seen := w.watched[path]
		w.watched[path] = true
		w.mu.Unlock()
		if seen {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", logger.WithField("dir", path), logger.WithError(err))
			return nil
		}
		w.logger.Debug("Watching directory", logger.WithField("dir", path))
		return nil
	})
}

// Watched lists the watched directories
func (w *Watcher) Watched() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.watched))
	for dir := range w.watched {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// Run delivers changed paths to onChange once the tree has been quiet for the
// settling delay. onChange runs on the caller's goroutine, so changes made
// while it runs are batched for the next call. Run returns when ctx ends.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	pending := map[string]bool{}
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.isExcluded(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.Add(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", logger.WithField("dir", event.Name), logger.WithError(err))
					}
				}
			}

			pending[event.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.settling)
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = map[string]bool{}

			w.logger.Info("Detected changes", logger.WithField("files", len(paths)))
			onChange(ctx, paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", logger.WithError(err))
		}
	}
}

func (w *Watcher) isExcluded(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.excludedName[filepath.Base(path)] || w.matcher.match(path) {
		return true
	}
	for _, dir := range w.excludedDirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
