package quarantine

import (
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// linkAndUnlink 用硬链接实现不覆盖的移动: link 在目标存在时失败
func linkAndUnlink(src, dst string) error {
	err := os.Link(src, dst)
	if err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			return copyAndUnlink(src, dst)
		}
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// 源文件删不掉就撤销, 避免留下两份
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// copyAndUnlink 跨文件系统时退化为独占创建 + 复制 + 删除源文件
func copyAndUnlink(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("cannot copy non-regular file %s across filesystems", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return errors.Wrap(err, "copy")
	}
	if err := out.Sync(); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return errors.Wrap(err, "sync")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
