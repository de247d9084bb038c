package scan

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/andersk/semgrep/internal/engine"
	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/types"
)

// DefaultDebounce batches rapid editor save bursts into one rescan.
const DefaultDebounce = 200 * time.Millisecond

// WatchResult is one rescan of one changed file.
type WatchResult struct {
	Path     string
	Findings []engine.Finding
	Errors   []*rerr.RuleError
}

// Watcher rescans files as they change. Directory watches are installed
// recursively at start and extended when new directories appear; change
// events are debounced so a burst of writes triggers one rescan per file.
type Watcher struct {
	scanner   *Scanner
	discovery *discovery
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	results   chan WatchResult

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher prepares a watcher over the scanner's configured root.
func NewWatcher(s *Scanner) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	d, err := newDiscovery(s.cfg)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		scanner:   s,
		discovery: d,
		watcher:   fsw,
		debounce:  DefaultDebounce,
		results:   make(chan WatchResult, 16),
		pending:   make(map[string]bool),
		quit:      make(chan struct{}),
	}, nil
}

// Results delivers one entry per rescanned file. Delivery ends when the
// watcher stops; the channel itself is never closed.
func (w *Watcher) Results() <-chan WatchResult { return w.results }

// Start installs watches and begins processing events until the context
// is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatches(w.scanner.cfg.Root); err != nil {
		w.watcher.Close()
		return err
	}

	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Stop tears down the watcher and waits for in-flight rescans.
func (w *Watcher) Stop() {
	close(w.quit)
	w.watcher.Close()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.scanner.cfg.Root, path)
		if err == nil && rel != "." && w.discovery.excluded(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(w.scanner.cfg.Root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if info.IsDir() {
		// Watch newly created directories so files inside get events.
		if event.Op&fsnotify.Create != 0 && !w.discovery.excluded(rel, true) {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Printf("watch %s: %v", event.Name, err)
			}
		}
		return
	}

	if _, ok := w.discovery.accept(event.Name, rel); !ok {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.mu.Unlock()
}

// flush rescans every pending file.
func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for _, path := range paths {
		rel, err := filepath.Rel(w.scanner.cfg.Root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		lang := types.LangGeneric
		if l, ok := parser.LanguageForExtension(filepath.Ext(path)); ok {
			lang = l
		}

		timeout := time.Duration(w.scanner.cfg.Limits.RuleTimeoutMs) * time.Millisecond
		ctx, cancel := context.WithTimeout(context.Background(), timeout*time.Duration(len(w.scanner.rules)+1))
		findings, errs := w.scanner.scanFile(ctx, TargetFile{Path: path, Rel: rel, Lang: lang})
		cancel()

		select {
		case w.results <- WatchResult{Path: rel, Findings: findings, Errors: errs}:
		case <-w.quit:
			return
		}
	}
}
