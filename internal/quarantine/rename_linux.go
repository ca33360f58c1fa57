//go:build linux

package quarantine

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// renameNoReplace 原子移动, 目标已存在时返回 EEXIST 而不是覆盖
func renameNoReplace(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS):
		// 文件系统或内核不支持 RENAME_NOREPLACE (如部分 FUSE / 旧内核)
		return linkAndUnlink(src, dst)
	case errors.Is(err, unix.EXDEV):
		return copyAndUnlink(src, dst)
	}
	return err
}
