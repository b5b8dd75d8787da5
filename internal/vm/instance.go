// Package vm implements the clone lifecycle: ensuring an instance
// exists and is running, converging on state changes, and tearing
// instances down.
package vm

import (
	"errors"

	"github.com/burrowvm/burrow/internal/utmctl"
)

// Instance is the orchestrator's view of a clone. It is a snapshot:
// the hypervisor's own store is authoritative, and every decision
// re-queries it rather than trusting a handle.
type Instance struct {
	Name           string        `json:"name" yaml:"name"`
	Label          string        `json:"label" yaml:"label"`
	UUID           string        `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	MACAddress     string        `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	DisplayEnabled bool          `json:"display_enabled" yaml:"display_enabled"`
	HasSharedDisk  bool          `json:"has_shared_disk" yaml:"has_shared_disk"`
	Status         utmctl.Status `json:"status" yaml:"status"`
	IPAddress      string        `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
}

// ErrDisplayInUse is returned when a gui request collides with an
// already-started instance holding the display. This is a hard veto;
// the conflicting instance must be stopped first.
var ErrDisplayInUse = errors.New("display already in use by a running instance")

// ErrIPTimeout is returned when IP discovery exhausts its attempt
// budget. The instance may still be booting; it is reported, not
// escalated.
var ErrIPTimeout = errors.New("timed out waiting for an IP address")

// ErrNotFound is returned for lifecycle operations on a label with no
// corresponding instance.
var ErrNotFound = errors.New("instance not found")
