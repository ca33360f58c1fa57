package sysutil

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/Hara602/downloadSentry/internal/model"
)

// InstanceLock 保证同一数据目录下只有一个 agent 在隔离文件
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes a non-blocking exclusive lock on lockPath.
// It returns model.ErrAlreadyRunning when another process holds it.
func AcquireInstanceLock(lockPath string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return nil, errors.Wrapf(model.ErrDirectoryUnavailable, "create %s: %v", filepath.Dir(lockPath), err)
	}

	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "lock instance")
	}
	if !ok {
		return nil, errors.Wrapf(model.ErrAlreadyRunning, "lock held: %s", lockPath)
	}
	return &InstanceLock{lock: fl}, nil
}

// Release unlocks and removes the lock file.
func (l *InstanceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	err := l.lock.Unlock()
	_ = os.Remove(l.lock.Path())
	return err
}
