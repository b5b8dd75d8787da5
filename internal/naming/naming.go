// Package naming holds the naming conventions shared across burrow:
// how labels map to instance names, which labels are off limits, and
// where an instance's filesystem artifacts live.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrReservedLabel is returned for labels that collide with burrow
// command names.
var ErrReservedLabel = errors.New("label is reserved")

// labelPattern matches valid clone labels. Labels become part of the
// instance name and the bundle directory, so the character set is kept
// conservative.
var labelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// reservedLabels are labels that collide with burrow command names. The
// CLI dispatches on its first argument, so these can never name a clone.
var reservedLabels = map[string]bool{
	"up":         true,
	"list":       true,
	"stop":       true,
	"suspend":    true,
	"destroy":    true,
	"ip":         true,
	"status":     true,
	"attach":     true,
	"exec":       true,
	"ssh":        true,
	"help":       true,
	"version":    true,
	"completion": true,
}

// ValidateLabel checks that label is usable as a clone label. Reserved
// labels are a user error, reported immediately.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label is required")
	}
	if reservedLabels[strings.ToLower(label)] {
		return fmt.Errorf("%w: %q collides with a burrow command", ErrReservedLabel, label)
	}
	if !labelPattern.MatchString(strings.ToLower(label)) {
		return fmt.Errorf("label must start with an alphanumeric character and contain only alphanumerics, hyphens, or underscores, got %q", label)
	}
	return nil
}

// IsReserved reports whether label collides with a burrow command name.
func IsReserved(label string) bool {
	return reservedLabels[label]
}

// InstanceName derives the hypervisor instance name for a label.
// Format: {prefix}{label}
func InstanceName(prefix, label string) string {
	return prefix + strings.ToLower(strings.TrimSpace(label))
}

// LabelFromInstance recovers the label from an instance name, or ""
// when the name does not carry the fleet prefix.
func LabelFromInstance(prefix, name string) string {
	if prefix != "" && strings.HasPrefix(name, prefix) {
		return strings.TrimPrefix(name, prefix)
	}
	return ""
}

// InFleet reports whether name belongs to the fleet with the given
// prefix.
func InFleet(prefix, name string) bool {
	return strings.HasPrefix(name, prefix) && name != prefix
}

// BundlePath returns the bundle directory for an instance.
// Format: {imageStore}/{name}.utm
func BundlePath(imageStore, name string) string {
	return filepath.Join(imageStore, name+".utm")
}

// DocumentPath returns the configuration document inside a bundle.
func DocumentPath(bundle string) string {
	return filepath.Join(bundle, "config.plist")
}

// DataDir returns the directory of drive images inside a bundle.
func DataDir(bundle string) string {
	return filepath.Join(bundle, "Data")
}

// DiskLinkName is the filename of the disk-linkage artifact: a symlink
// inside a bundle's Data directory pointing at the shared volume. Its
// presence marks the instance as the shared-disk holder.
const DiskLinkName = "shared.qcow2"

// DiskLinkPath returns the disk-linkage artifact path for a bundle.
func DiskLinkPath(bundle string) string {
	return filepath.Join(DataDir(bundle), DiskLinkName)
}
