package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/alert"
	"github.com/Hara602/downloadSentry/internal/bus"
	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/sysutil"
	"github.com/Hara602/downloadSentry/internal/watcher"
)

// Quarantiner 隔离一个检测事件, 结果由 record 表达
type Quarantiner interface {
	Quarantine(ev model.DetectionEvent) model.QuarantineRecord
}

// Recorder persists records for auditing. Optional.
type Recorder interface {
	Record(rec model.QuarantineRecord) error
}

type Options struct {
	WatchDir    string
	StatusTitle string
	StatusText  string
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = sysutil.OrNop(l) }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// withWatcherFactory lets tests observe watcher creation.
func withWatcherFactory(f func(watcher.Handler, *zap.Logger) watcher.Watcher) Option {
	return func(s *Service) { s.newWatcher = f }
}

// Snapshot is a point-in-time view of the service.
type Snapshot struct {
	State       model.ServiceState
	WatchDir    string
	Detected    int64
	Quarantined int64
	Failed      int64
}

// Service 长期运行的监控服务, 独占 DirectoryWatcher
type Service struct {
	opts      Options
	store     Quarantiner
	bus       *bus.Bus
	presenter alert.Presenter
	recorder  Recorder
	log       *zap.Logger

	newWatcher func(watcher.Handler, *zap.Logger) watcher.Watcher

	mu      sync.Mutex
	state   atomic.Int32
	watcher watcher.Watcher
	handle  *watcher.Handle

	// keep-alive 状态通知
	statusMu     sync.Mutex
	statusTitle  string
	statusText   string
	statusActive bool

	// internal listener
	listener     *bus.Subscription
	listenerStop chan struct{}
	listenerWG   sync.WaitGroup

	detected    atomic.Int64
	quarantined atomic.Int64
	failed      atomic.Int64
}

func New(opts Options, store Quarantiner, b *bus.Bus, presenter alert.Presenter, options ...Option) *Service {
	s := &Service{
		opts:        opts,
		store:       store,
		bus:         b,
		presenter:   presenter,
		log:         zap.NewNop(),
		newWatcher:  watcher.New,
		statusTitle: opts.StatusTitle,
		statusText:  opts.StatusText,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Service) State() model.ServiceState {
	return model.ServiceState(s.state.Load())
}

func (s *Service) setState(st model.ServiceState) {
	s.state.Store(int32(st))
	s.log.Debug("service state", zap.Stringer("state", st))
}

// Start acquires the directory watch and the keep-alive signal.
// Starting a running service is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != model.StateStopped {
		return nil
	}
	s.setState(model.StateStarting)

	w := s.newWatcher(s.onDetection, s.log)
	h, err := w.Start(s.opts.WatchDir)
	if err != nil {
		w.Close()
		s.setState(model.StateStopped)
		s.log.Error("Failed to start directory watch", zap.String("path", s.opts.WatchDir), zap.Error(err))
		return errors.Wrap(err, "start service")
	}
	s.watcher, s.handle = w, h

	s.startListener()
	s.setKeepAlive(true)

	s.setState(model.StateRunning)
	s.log.Info("✅ Realtime protection started", zap.String("path", h.Root()))
	return nil
}

// Stop releases the watch and clears the keep-alive. Stopping a stopped
// service is a no-op. In-flight detections finish before Stop returns.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != model.StateRunning {
		return nil
	}
	s.setState(model.StateStopping)

	if s.watcher != nil {
		s.watcher.Stop(s.handle)
		s.watcher.Close()
	}
	s.watcher, s.handle = nil, nil

	s.stopListener()
	s.setKeepAlive(false)

	s.setState(model.StateStopped)
	s.log.Info("Realtime protection stopped")
	return nil
}

// StartAfter waits delay (the boot grace period) and then starts the service.
func (s *Service) StartAfter(ctx context.Context, delay time.Duration) error {
	if delay > 0 {
		s.log.Info("Scheduling service start", zap.Duration("delay", delay))
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return s.Start()
}

// OnTaskRemoved is called when the user dismisses the host's foreground task.
// The service keeps running; the host restarts it if it is killed.
func (s *Service) OnTaskRemoved() {
	s.log.Info("Task removed, service keeps running", zap.Stringer("state", s.State()))
}

func (s *Service) Snapshot() Snapshot {
	return Snapshot{
		State:       s.State(),
		WatchDir:    s.opts.WatchDir,
		Detected:    s.detected.Load(),
		Quarantined: s.quarantined.Load(),
		Failed:      s.failed.Load(),
	}
}

// onDetection is the detection pipeline: quarantine, record, publish, alert.
// It runs on the watcher goroutine and must not take s.mu.
func (s *Service) onDetection(ev model.DetectionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("detection pipeline panic", zap.String("file", ev.SourcePath), zap.Any("panic", r))
		}
	}()

	s.log.Info("📂 New file detected", zap.String("file", ev.SourcePath), zap.String("id", ev.ID))
	rec := s.store.Quarantine(ev)

	if s.recorder != nil {
		if err := s.recorder.Record(rec); err != nil {
			s.log.Warn("Failed to write ledger", zap.String("id", rec.EventID), zap.Error(err))
		}
	}

	// UI 无论隔离结果如何都会收到通知
	s.bus.Publish(rec)

	if rec.Quarantined() {
		body := filepath.Base(rec.OriginalPath)
		if rec.Masquerade {
			body += " (content does not match its extension)"
		}
		s.presenter.Notify(alert.ChannelAlert, "File quarantined", body)
	}
}

func (s *Service) startListener() {
	s.listener = s.bus.Listen()
	s.listenerStop = make(chan struct{})
	s.listenerWG.Add(1)
	go func(sub *bus.Subscription, stop <-chan struct{}) {
		defer s.listenerWG.Done()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if ev.Type != bus.FileQuarantined {
					continue
				}
				rec, ok := ev.Value.(model.QuarantineRecord)
				if !ok {
					continue
				}
				s.count(rec)
			}
		}
	}(s.listener, s.listenerStop)
}

func (s *Service) stopListener() {
	if s.listener == nil {
		return
	}
	// 退订会关闭事件通道, 监听协程处理完积压事件后退出
	if err := s.bus.Unlisten(s.listener); err != nil {
		s.log.Debug("unlisten", zap.Error(err))
		close(s.listenerStop)
	}
	s.listenerWG.Wait()
	s.listener = nil
}

func (s *Service) count(rec model.QuarantineRecord) {
	s.detected.Add(1)
	switch rec.Outcome {
	case model.OutcomeQuarantined:
		s.quarantined.Add(1)
		s.refreshStatus()
	case model.OutcomeFailed:
		s.failed.Add(1)
	}
}

// setKeepAlive posts or clears the persistent status notification.
func (s *Service) setKeepAlive(on bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.statusActive = on
	if on {
		s.presenter.Notify(alert.ChannelStatus, s.statusTitle, s.statusBody())
	} else {
		s.presenter.Clear(alert.ChannelStatus)
	}
}

func (s *Service) refreshStatus() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if s.statusActive {
		s.presenter.Notify(alert.ChannelStatus, s.statusTitle, s.statusBody())
	}
}

// statusBody requires statusMu.
func (s *Service) statusBody() string {
	n := s.quarantined.Load()
	if n == 0 {
		return s.statusText
	}
	return fmt.Sprintf("%s · %d quarantined", s.statusText, n)
}
