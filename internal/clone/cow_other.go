//go:build !darwin

package clone

// cloneTree duplicates a bundle by plain recursive copy. Copy-on-write
// cloning is only available on darwin/APFS.
func cloneTree(src, dst string) error {
	return copyTree(src, dst)
}
