package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/sysutil"
)

// Handle is one active, non-recursive watch of a directory.
type Handle struct {
	root string
	fs   *fsnotify.Watcher
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Root returns the absolute watched directory.
func (h *Handle) Root() string { return h.root }

// release closes the native watch and waits for the event loop to exit.
func (h *Handle) release() {
	h.once.Do(func() {
		close(h.stop)
		_ = h.fs.Close()
		h.wg.Wait()
	})
}

type directoryWatcher struct {
	mu      sync.Mutex
	handler Handler
	current *Handle
	log     *zap.Logger
}

func newDirectoryWatcher(handler Handler, log *zap.Logger) *directoryWatcher {
	return &directoryWatcher{
		handler: handler,
		log:     sysutil.OrNop(log),
	}
}

// Start watches path for files created in or moved into it.
// Any previous watch is released first.
func (w *directoryWatcher) Start(path string) (*Handle, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(model.ErrDirectoryUnavailable, "resolve %s: %v", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil {
		w.current.release()
		w.current = nil
	}

	// 目录不存在则创建
	if err := sysutil.EnsureDir(root, 0o755); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrapf(model.ErrDirectoryUnavailable, "init watcher: %v", err)
	}
	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return nil, errors.Wrapf(model.ErrDirectoryUnavailable, "watch %s: %v", root, err)
	}

	h := &Handle{
		root: root,
		fs:   fsw,
		stop: make(chan struct{}),
	}
	h.wg.Add(1)
	go w.loop(h)

	w.current = h
	w.log.Info("👀 Watching directory", zap.String("path", root))
	return h, nil
}

// Stop releases h. Stopping an already stopped handle is a no-op.
func (w *directoryWatcher) Stop(h *Handle) {
	if h == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	h.release()
	if w.current == h {
		w.current = nil
		w.log.Info("Directory watch stopped", zap.String("path", h.root))
	}
}

// Close releases whatever watch is active.
func (w *directoryWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.current.release()
		w.current = nil
	}
}

func (w *directoryWatcher) loop(h *Handle) {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return

		case event, ok := <-h.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == h.root && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				// 监控目录本身被删除或改名后内核会撤销 watch, 之后不再有事件
				w.log.Warn("⚠️ Watched directory removed or renamed, no further arrivals will be detected",
					zap.String("path", h.root), zap.Stringer("op", event.Op))
				continue
			}
			// "mv /elsewhere/a /watched/a" 在 inotify 上也表现为 Create
			if !event.Has(fsnotify.Create) {
				continue
			}
			select {
			case <-h.stop:
				return
			default:
			}
			w.handler(model.DetectionEvent{
				ID:         ulid.Make().String(),
				SourcePath: filepath.Join(h.root, filepath.Base(event.Name)),
				Timestamp:  time.Now(),
			})

		case err, ok := <-h.fs.Errors:
			if !ok {
				return
			}
			// 队列溢出等错误只记录, 继续监听
			w.log.Warn("Directory watch error", zap.String("path", h.root), zap.Error(err))
		}
	}
}
