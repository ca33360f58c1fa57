package alert

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/sysutil"
)

// ChannelKind 通知渠道
type ChannelKind int

const (
	// ChannelStatus low priority, one persistent notification updated in place ("watcher is active").
	ChannelStatus ChannelKind = iota
	// ChannelAlert high priority, one auto-dismissible notification per event.
	ChannelAlert
)

func (k ChannelKind) String() string {
	if k == ChannelStatus {
		return "status"
	}
	return "alert"
}

// Presenter posts user-visible notifications. Implementations must never
// fail the caller: errors are logged and swallowed.
type Presenter interface {
	Notify(kind ChannelKind, title, body string)
	Clear(kind ChannelKind)
}

// StatusNotice is the persisted status-channel notification.
type StatusNotice struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadStatus loads the status file written by the default presenter.
func ReadStatus(path string) (StatusNotice, error) {
	var n StatusNotice
	b, err := os.ReadFile(path)
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(b, &n); err != nil {
		return n, errors.Wrapf(err, "decode %s", path)
	}
	return n, nil
}

type presenter struct {
	statusPath string
	log        *zap.Logger

	mu   sync.Mutex
	last StatusNotice
}

// NewPresenter 状态渠道写 statusPath (原子替换) 并记录日志, 告警渠道只写日志
func NewPresenter(statusPath string, log *zap.Logger) Presenter {
	return &presenter{
		statusPath: statusPath,
		log:        sysutil.OrNop(log),
	}
}

func (p *presenter) Notify(kind ChannelKind, title, body string) {
	switch kind {
	case ChannelStatus:
		p.postStatus(title, body)
	default:
		p.log.Warn("🚨 "+title,
			zap.String("channel", kind.String()),
			zap.String("id", ulid.Make().String()),
			zap.String("body", body))
	}
}

func (p *presenter) postStatus(title, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := p.last.Title != title || p.last.Body != body
	notice := StatusNotice{Title: title, Body: body, UpdatedAt: time.Now()}
	if err := writeAtomic(p.statusPath, notice); err != nil {
		p.log.Debug("status notification not posted",
			zap.Error(errors.Wrap(model.ErrNotificationPostFailed, err.Error())))
		return
	}
	p.last = notice
	// only alert once: 内容不变时不重复输出
	if changed {
		p.log.Info("🛡️ "+title, zap.String("channel", ChannelStatus.String()), zap.String("body", body))
	}
}

func (p *presenter) Clear(kind ChannelKind) {
	if kind != ChannelStatus {
		// alerts auto-dismiss
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = StatusNotice{}
	if err := os.Remove(p.statusPath); err != nil && !os.IsNotExist(err) {
		p.log.Debug("status notification not cleared", zap.Error(err))
	}
}

func writeAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
