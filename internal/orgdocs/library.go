// Package orgdocs maintains the organization reference library: a directory
// of shared documents used to answer general questions without per-user
// uploads. The library keeps extracted text in memory and reloads files as
// they change on disk.
package orgdocs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/extract"
)

// debounceDelay coalesces rapid write events on the same file.
const debounceDelay = 400 * time.Millisecond

// Library caches extracted text for every supported file in one directory.
type Library struct {
	dir        string
	extensions []string
	extractor  *extract.Extractor
	logger     *zap.Logger

	mu   sync.RWMutex
	docs map[string]string // filename -> extracted text

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Library) {
		l.logger = logger
	}
}

// NewLibrary creates a library over dir. extensions filters which files are
// loaded (with leading dot; empty means every supported format).
func NewLibrary(dir string, extensions []string, opts ...Option) *Library {
	l := &Library{
		dir:         dir,
		extensions:  extensions,
		extractor:   extract.NewExtractor(),
		logger:      zap.NewNop(),
		docs:        make(map[string]string),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load scans the directory and extracts every matching file into the cache,
// creating the directory when missing. Files that fail extraction are
// skipped with a warning.
func (l *Library) Load() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		l.loadFile(filepath.Join(l.dir, entry.Name()))
	}
	return nil
}

func (l *Library) loadFile(path string) {
	if !l.matchExtension(path) {
		return
	}
	text, err := l.extractor.Extract(path)
	if err != nil {
		l.logger.Warn("organization document skipped",
			zap.String("path", path), zap.Error(err))
		return
	}
	l.mu.Lock()
	l.docs[filepath.Base(path)] = text
	l.mu.Unlock()
	l.logger.Debug("organization document loaded", zap.String("path", path))
}

func (l *Library) dropFile(path string) {
	l.mu.Lock()
	delete(l.docs, filepath.Base(path))
	l.mu.Unlock()
	l.logger.Debug("organization document removed", zap.String("path", path))
}

func (l *Library) matchExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !l.extractor.Supported(ext) {
		return false
	}
	if len(l.extensions) == 0 {
		return true
	}
	for _, e := range l.extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Size reports how many documents are cached.
func (l *Library) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}

// Watch starts reloading the cache on file changes until ctx is cancelled
// or Close is called. Write events are debounced per file.
func (l *Library) Watch(ctx context.Context) error {
	l.watchMu.Lock()
	if l.started {
		l.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.watchMu.Unlock()
		return err
	}
	if err := watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		l.watchMu.Unlock()
		return err
	}
	l.watcher = watcher
	l.started = true
	l.watchMu.Unlock()

	go l.run(ctx)
	return nil
}

func (l *Library) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.done:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(ev)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				l.logger.Debug("library watch error", zap.Error(err))
			}
		}
	}
}

func (l *Library) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return
		}
		l.debounceLoad(ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		l.cancelDebounce(ev.Name)
		l.dropFile(ev.Name)
	}
}

func (l *Library) debounceLoad(path string) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if t, ok := l.debounceMap[path]; ok {
		t.Stop()
	}
	l.debounceMap[path] = time.AfterFunc(debounceDelay, func() {
		l.watchMu.Lock()
		delete(l.debounceMap, path)
		l.watchMu.Unlock()
		l.loadFile(path)
	})
}

func (l *Library) cancelDebounce(path string) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if t, ok := l.debounceMap[path]; ok {
		t.Stop()
		delete(l.debounceMap, path)
	}
}

// Close stops watching and releases resources. The cache stays readable.
func (l *Library) Close() {
	l.watchMu.Lock()
	if !l.started || l.watcher == nil {
		l.watchMu.Unlock()
		return
	}
	for path, t := range l.debounceMap {
		t.Stop()
		delete(l.debounceMap, path)
	}
	_ = l.watcher.Close()
	l.watcher = nil
	l.started = false
	l.watchMu.Unlock()
	l.stopOnce.Do(func() { close(l.done) })
}
