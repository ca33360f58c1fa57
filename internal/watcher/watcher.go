package watcher

import (
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/model"
)

// Handler receives each detection. It runs on the watcher's own goroutine.
type Handler func(model.DetectionEvent)

// Watcher 定义接口
type Watcher interface {
	Start(path string) (*Handle, error)
	Stop(h *Handle)
	Close()
}

func New(handler Handler, log *zap.Logger) Watcher {
	return newDirectoryWatcher(handler, log)
}
