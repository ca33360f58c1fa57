package sysutil

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log = zap.NewNop()
var LogSugar = Log.Sugar()

// InitLogger 初始化全局日志, format 为 "console" 或 "json"
func InitLogger(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder // 格式化时间输出

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别
		encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	case "json":
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	default:
		return errors.Errorf("invalid log format %q", format)
	}

	// stdout 留给订阅者输出, 日志写 stderr
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), lvl)
	Log = zap.New(core, zap.AddCaller())
	LogSugar = Log.Sugar()
	return nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
