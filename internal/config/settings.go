package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

const (
	appDirName = "downloadsentry"

	// quarantine 目录位于应用私有数据目录下
	QuarantineDirName = "quarantine"
	statusFileName    = "status.json"
	lockFileName      = "agent.lock"
	ledgerFileName    = "ledger.db"
)

type Settings struct {
	WatchDir         string        `yaml:"watch_dir" env:"SENTRY_WATCH_DIR" env-description:"directory watched for new files"`
	DataDir          string        `yaml:"data_dir" env:"SENTRY_DATA_DIR" env-description:"private data directory holding the quarantine"`
	BootDelay        time.Duration `yaml:"boot_delay" env:"SENTRY_BOOT_DELAY" env-default:"7s" env-description:"grace delay before starting at boot"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"SENTRY_SUBSCRIBER_BUFFER" env-default:"64" env-description:"buffered notices for the external subscriber"`

	Logging Logging `yaml:"logging"`
	Status  Status  `yaml:"status"`
	Ledger  Ledger  `yaml:"ledger"`
}

type Logging struct {
	Level  string `yaml:"level" env:"SENTRY_LOG_LEVEL" env-default:"info" env-description:"logging level such as debug, info, error"`
	Format string `yaml:"format" env:"SENTRY_LOG_FORMAT" env-default:"console" env-description:"console or json"`
}

type Status struct {
	Title string `yaml:"title" env:"SENTRY_STATUS_TITLE" env-default:"Download Sentry" env-description:"persistent status notification title"`
	Text  string `yaml:"text" env:"SENTRY_STATUS_TEXT" env-default:"Realtime protection active" env-description:"persistent status notification text"`
}

type Ledger struct {
	Enabled bool   `yaml:"enabled" env:"SENTRY_LEDGER" env-default:"false" env-description:"keep an sqlite audit log of quarantine records"`
	Path    string `yaml:"path" env:"SENTRY_LEDGER_PATH" env-description:"ledger database path"`
}

// NewSettings reads the optional config file, then the environment, then applies defaults.
func NewSettings(configFile string) (*Settings, error) {
	var cfg Settings
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, errors.Errorf("no config %s", configFile)
		}
		if err := cleanenv.ReadConfig(configFile, &cfg); err != nil {
			return nil, errors.Wrapf(err, "config read %s", configFile)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "config read env")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate settings")
	}
	return &cfg, nil
}

// Validate fills host defaults and checks values.
func (s *Settings) Validate() error {
	s.WatchDir = strings.TrimSpace(s.WatchDir)
	if s.WatchDir == "" {
		dir, err := DefaultWatchDir()
		if err != nil {
			return err
		}
		s.WatchDir = dir
	}
	s.DataDir = strings.TrimSpace(s.DataDir)
	if s.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		s.DataDir = dir
	}

	var err error
	if s.WatchDir, err = filepath.Abs(s.WatchDir); err != nil {
		return errors.Wrap(err, "watch dir")
	}
	if s.DataDir, err = filepath.Abs(s.DataDir); err != nil {
		return errors.Wrap(err, "data dir")
	}
	if s.WatchDir == s.QuarantineDir() {
		return errors.New("watch dir and quarantine dir must differ")
	}
	if s.WatchDir == s.DataDir {
		// 隔离目录会出现在监控目录里并被当作新文件
		return errors.New("data dir cannot be the watch dir")
	}

	if s.BootDelay < 0 {
		return errors.New("boot delay cannot be negative")
	}
	if s.SubscriberBuffer <= 0 {
		return errors.New("subscriber buffer must be positive")
	}
	switch s.Logging.Format {
	case "console", "json":
	default:
		return errors.Errorf("invalid log format %q", s.Logging.Format)
	}
	return nil
}

func (s *Settings) QuarantineDir() string { return filepath.Join(s.DataDir, QuarantineDirName) }
func (s *Settings) StatusPath() string    { return filepath.Join(s.DataDir, statusFileName) }
func (s *Settings) LockPath() string      { return filepath.Join(s.DataDir, lockFileName) }

func (s *Settings) LedgerPath() string {
	if s.Ledger.Path != "" {
		return s.Ledger.Path
	}
	return filepath.Join(s.DataDir, ledgerFileName)
}

// DefaultWatchDir is the host's downloads directory.
func DefaultWatchDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, "Downloads"), nil
}

// DefaultDataDir is the per-user application directory.
func DefaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve config directory")
	}
	return filepath.Join(base, appDirName), nil
}
