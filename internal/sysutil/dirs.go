package sysutil

import (
	"os"

	"github.com/pkg/errors"

	"github.com/Hara602/downloadSentry/internal/model"
)

// EnsureDir 目录不存在则创建; 路径存在但不是目录也视为不可用
func EnsureDir(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return errors.Wrapf(model.ErrDirectoryUnavailable, "create %s: %v", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(model.ErrDirectoryUnavailable, "stat %s: %v", path, err)
	}
	if !info.IsDir() {
		return errors.Wrapf(model.ErrDirectoryUnavailable, "%s is not a directory", path)
	}
	return nil
}
