//go:build darwin

package clone

import (
	"errors"

	"golang.org/x/sys/unix"
)

// cloneTree duplicates a bundle with clonefile(2), which clones the
// whole directory tree copy-on-write on APFS. Sources on filesystems
// without clone support fall back to a plain copy.
func cloneTree(src, dst string) error {
	err := unix.Clonefile(src, dst, 0)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EXDEV) {
		return copyTree(src, dst)
	}
	return err
}
