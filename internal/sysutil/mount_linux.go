//go:build linux

package sysutil

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var mountUnescaper = strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)

// SameDevice 判断两个路径是否在同一文件系统上, 跨设备时 rename 会退化为复制
func SameDevice(a, b string) (bool, error) {
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		return false, errors.Wrapf(err, "stat %s", a)
	}
	if err := unix.Stat(b, &sb); err != nil {
		return false, errors.Wrapf(err, "stat %s", b)
	}
	return sa.Dev == sb.Dev, nil
}

// MountPoint 在 /proc/mounts 中查找包含 path 的最长挂载点
func MountPoint(path string) string {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	best := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		mnt := mountUnescaper.Replace(fields[1])
		if withinMount(path, mnt) && len(mnt) > len(best) {
			best = mnt
		}
	}
	return best
}

func withinMount(path, mnt string) bool {
	if mnt == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mnt || strings.HasPrefix(path, mnt+"/")
}
