package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/services"
)

// Discovery is one candidate file surfaced by the watcher. Path is absolute.
type Discovery struct {
	Path    string
	Size    int64
	ModTime time.Time
	Root    string
}

// Watcher merges a startup enumeration of the configured roots with live
// filesystem events into a de-duplicated stream of discoveries. Each unique
// absolute path is emitted at most once per process run.
type Watcher struct {
	roots  []config.WatchPath
	logger *slog.Logger
	out    chan Discovery
}

// New builds a watcher over the configured watch roots.
func New(cfg *config.Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		roots:  append([]config.WatchPath(nil), cfg.Watch...),
		logger: logging.NewComponentLogger(logger, "watcher"),
		out:    make(chan Discovery, 64),
	}
}

// Events returns the discovery stream. The channel closes once the context
// passed to Start ends and the watch goroutine drains.
func (w *Watcher) Events() <-chan Discovery {
	return w.out
}

// Start registers filesystem watches and launches the merge goroutine. A
// root that is missing or unreadable is logged and skipped; the remaining
// roots keep working.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrStartup, "watcher", "start", "create filesystem watcher", err)
	}

	for _, root := range w.roots {
		if err := w.addRoot(fsw, root); err != nil {
			w.logger.Warn("watch root unavailable",
				logging.String("path", root.Path),
				logging.Error(err),
			)
		}
	}

	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root config.WatchPath) error {
	info, err := os.Stat(root.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root.Path)
	}
	if err := fsw.Add(root.Path); err != nil {
		return err
	}
	if !root.Recursive {
		return nil
	}
	return filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == root.Path {
			return nil
		}
		if addErr := fsw.Add(path); addErr != nil {
			w.logger.Debug("watch subdirectory failed",
				logging.String("path", path),
				logging.Error(addErr),
			)
		}
		return nil
	})
}

// run owns the seen set. The startup scan and the live event stream both
// funnel through here, so the startup/live race on the same path cannot
// produce two emissions.
func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.out)
	defer fsw.Close()

	seen := make(map[string]struct{})

	for _, root := range w.roots {
		w.scanTree(ctx, root, root.Path, seen)
		if ctx.Err() != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, fsw, event, seen)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) scanTree(ctx context.Context, root config.WatchPath, base string, seen map[string]struct{}) {
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			if path == base {
				return err
			}
			w.logger.Debug("scan entry unreadable",
				logging.String("path", path),
				logging.Error(err),
			)
			return nil
		}
		if d.IsDir() {
			if path != base && !root.Recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !matchesPatterns(root.Patterns, d.Name()) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		w.emit(ctx, seen, root, path, info)
		return nil
	})
	if err != nil {
		w.logger.Warn("watch root scan failed",
			logging.String("path", base),
			logging.Error(err),
		)
		return
	}
	if base == root.Path {
		w.logger.Info("root scan complete", logging.String("path", root.Path))
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event, seen map[string]struct{}) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(event.Name)
	root, ok := w.rootFor(path)
	if !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		// Raced with a remove or rename-out; nothing to emit.
		return
	}
	if info.IsDir() {
		// Directories moved or created inside a recursive root need their
		// own watch, and may already contain files.
		if root.Recursive && event.Op.Has(fsnotify.Create) {
			if addErr := fsw.Add(path); addErr != nil {
				w.logger.Warn("watch new subdirectory failed",
					logging.String("path", path),
					logging.Error(addErr),
				)
			}
			w.scanTree(ctx, root, path, seen)
		}
		return
	}
	if !matchesPatterns(root.Patterns, filepath.Base(path)) {
		return
	}
	w.emit(ctx, seen, root, path, info)
}

func (w *Watcher) emit(ctx context.Context, seen map[string]struct{}, root config.WatchPath, path string, info os.FileInfo) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if _, dup := seen[abs]; dup {
		return
	}
	seen[abs] = struct{}{}

	discovery := Discovery{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Root:    root.Path,
	}
	select {
	case w.out <- discovery:
		w.logger.Debug("file discovered",
			logging.String(logging.FieldSourcePath, abs),
			logging.Int64("size", info.Size()),
		)
	case <-ctx.Done():
	}
}

// rootFor maps an event path to its owning root. Non-recursive roots only
// claim direct children; nested roots resolve to the deepest match.
func (w *Watcher) rootFor(path string) (config.WatchPath, bool) {
	var (
		best    config.WatchPath
		bestLen = -1
	)
	for _, root := range w.roots {
		rel, err := filepath.Rel(root.Path, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !root.Recursive && strings.Contains(rel, string(filepath.Separator)) {
			continue
		}
		if len(root.Path) > bestLen {
			best = root
			bestLen = len(root.Path)
		}
	}
	return best, bestLen >= 0
}

func matchesPatterns(patterns []string, name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(strings.ToLower(pattern), lower); err == nil && ok {
			return true
		}
	}
	return false
}
