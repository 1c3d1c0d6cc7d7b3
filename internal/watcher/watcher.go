// Package watcher feeds documents dropped into a directory to a handler.
//
// Writes usually arrive as bursts of filesystem events, so a file is handed
// over only after it has been quiet for the debounce interval.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay unchanged before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	Dir string
	// Extensions lists the lower-case suffixes to handle, e.g. ".txt".
	Extensions []string
	Debounce   time.Duration
	// IncludeExisting hands over files already present when Run starts.
	IncludeExisting bool
}

// Watcher watches one directory, not recursively.
type Watcher struct {
	config  Config
	handler Handler
	logger  *zap.Logger
	fs      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	ignore  ignoreList
}

// New creates a Watcher over cfg.Dir.
func New(cfg Config, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", cfg.Dir)
	}

	ignore, err := loadIgnore(cfg.Dir)
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fs.Add(cfg.Dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watching %s: %w", cfg.Dir, err)
	}

	return &Watcher{
		config:  cfg,
		handler: handler,
		logger:  logger,
		fs:      fs,
		pending: make(map[string]time.Time),
		ignore:  ignore,
	}, nil
}

// Run handles files until ctx is done, then closes the underlying watcher.
// Handler errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	if w.config.IncludeExisting {
		if err := w.queueExisting(); err != nil {
			return err
		}
	}

	tick := time.NewTicker(w.config.Debounce / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) == IgnoreFile {
				w.reloadIgnore()
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.wanted(event.Name) {
				w.touch(event.Name, time.Now())
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		case now := <-tick.C:
			for _, path := range w.settled(now) {
				w.handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) queueExisting() error {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", w.config.Dir, err)
	}
	// zero time settles on the first tick
	for _, entry := range entries {
		path := filepath.Join(w.config.Dir, entry.Name())
		if entry.Type().IsRegular() && w.wanted(path) {
			w.touch(path, time.Time{})
		}
	}
	return nil
}

func (w *Watcher) wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	w.mu.Lock()
	ignored := w.ignore.match(base)
	w.mu.Unlock()
	if ignored {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range w.config.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// reloadIgnore re-reads IgnoreFile. A broken file keeps the previous patterns.
func (w *Watcher) reloadIgnore() {
	ignore, err := loadIgnore(w.config.Dir)
	if err != nil {
		w.logger.Warn("keeping previous ignore patterns", zap.Error(err))
		return
	}
	w.mu.Lock()
	w.ignore = ignore
	w.mu.Unlock()
	w.logger.Info("reloaded ignore patterns", zap.Int("patterns", len(ignore)))
}

func (w *Watcher) touch(path string, at time.Time) {
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// settled removes and returns, in name order, every pending path that has
// been quiet for the debounce interval.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.config.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		// removed or replaced before it settled
		return
	}
	start := time.Now()
	if err := w.handler(ctx, path); err != nil {
		w.logger.Error("handling file failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("handled file",
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	)
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// DocumentID derives a document identifier from a file name, so re-writing
// a file replaces its earlier entries while other files stay separate.
func DocumentID(path string) string {
	base := filepath.Base(path)
	id := strings.Trim(unsafeIDChars.ReplaceAllString(base, "-"), "-.")
	if len(id) > 128 {
		id = id[:128]
	}
	if id == "" {
		return "document"
	}
	return id
}
