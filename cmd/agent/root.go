package main

import (
	"github.com/spf13/cobra"

	"github.com/Hara602/downloadSentry/internal/config"
	"github.com/Hara602/downloadSentry/internal/sysutil"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Realtime download quarantine agent",
	Long: `Download Sentry watches the downloads directory and moves every newly
created or moved-in file into a private quarantine directory before other
applications open it. Each detection is reported to the attached consumer.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml); environment SENTRY_* overrides")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings 读取配置并初始化全局日志
func loadSettings() (*config.Settings, error) {
	settings, err := config.NewSettings(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := sysutil.InitLogger(settings.Logging.Level, settings.Logging.Format); err != nil {
		return nil, err
	}
	return settings, nil
}
