//go:build !linux

package quarantine

func renameNoReplace(src, dst string) error {
	return linkAndUnlink(src, dst)
}
