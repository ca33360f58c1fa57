package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/alert"
	"github.com/Hara602/downloadSentry/internal/analysis"
	"github.com/Hara602/downloadSentry/internal/bus"
	"github.com/Hara602/downloadSentry/internal/config"
	"github.com/Hara602/downloadSentry/internal/quarantine"
	"github.com/Hara602/downloadSentry/internal/service"
	"github.com/Hara602/downloadSentry/internal/sysutil"
)

var bootStart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watcher service in the foreground",
	Long: `Run starts realtime protection and prints one JSON line {"path": ...}
per detected file on stdout. SIGINT/SIGTERM stop the service; SIGHUP is
treated as the foreground task being dismissed and is ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		defer sysutil.Log.Sync()
		return run(cmd.Context(), settings, cmd.OutOrStdout(), bootStart)
	},
}

func init() {
	runCmd.Flags().BoolVar(&bootStart, "boot", false, "wait the configured boot delay before starting")
}

func run(ctx context.Context, settings *config.Settings, out io.Writer, boot bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := sysutil.Log
	log.Info("🛡️ Download Sentry Agent Starting...",
		zap.String("watch", settings.WatchDir),
		zap.String("quarantine", settings.QuarantineDir()))

	lock, err := sysutil.AcquireInstanceLock(settings.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()
	checkFilesystems(settings, log)

	// 初始化核心模块 (依赖注入)
	store := quarantine.NewStore(settings.QuarantineDir(),
		quarantine.WithLogger(log),
		quarantine.WithInspector(analysis.NewTypeInspector()))
	eventBus := bus.New(log)
	presenter := alert.NewPresenter(settings.StatusPath(), log)

	opts := []service.Option{service.WithLogger(log)}
	if settings.Ledger.Enabled {
		ledger, err := quarantine.OpenLedger(settings.LedgerPath())
		if err != nil {
			return errors.Wrap(err, "open ledger")
		}
		defer ledger.Close()
		opts = append(opts, service.WithRecorder(ledger))
	}

	svc := service.New(service.Options{
		WatchDir:    settings.WatchDir,
		StatusTitle: settings.Status.Title,
		StatusText:  settings.Status.Text,
	}, store, eventBus, presenter, opts...)

	// stdout 上的订阅者代替 UI
	sub := bus.NewSubscriber(settings.SubscriberBuffer)
	eventBus.SubscribeExternal(sub)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		enc := json.NewEncoder(out)
		for notice := range sub.Events() {
			if err := enc.Encode(notice); err != nil {
				log.Warn("Failed to write notice", zap.Error(err))
			}
		}
	}()
	defer func() {
		eventBus.UnsubscribeExternal()
		<-printed
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 捕获操作系统信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	started := make(chan error, 1)
	go func() {
		if boot {
			started <- svc.StartAfter(ctx, settings.BootDelay)
			return
		}
		started <- svc.Start()
	}()

	startPending := true
	shutdown := func() error {
		cancel()
		if startPending {
			// 等待启动协程结束, 避免 Stop 之后才完成 Start
			<-started
		}
		return svc.Stop()
	}

	for {
		select {
		case err := <-started:
			startPending = false
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// 启动失败只报告一次, 由调用方决定是否重试
				return err
			}
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				svc.OnTaskRemoved()
				continue
			}
			log.Info("Shutting down...", zap.Stringer("signal", sig))
			return shutdown()
		case <-ctx.Done():
			return shutdown()
		}
	}
}

// checkFilesystems 提示隔离目录与监控目录不在同一设备上
func checkFilesystems(settings *config.Settings, log *zap.Logger) {
	qdir := settings.QuarantineDir()
	if err := sysutil.EnsureDir(qdir, 0o700); err != nil {
		return
	}
	same, err := sysutil.SameDevice(settings.WatchDir, qdir)
	if err != nil || same {
		return
	}
	log.Warn("⚠️ Quarantine is on another filesystem, arrivals will be copied",
		zap.String("watch_mount", sysutil.MountPoint(settings.WatchDir)),
		zap.String("quarantine_mount", sysutil.MountPoint(qdir)))
}
