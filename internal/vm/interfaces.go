package vm

import (
	"context"

	"github.com/burrowvm/burrow/internal/clone"
	"github.com/burrowvm/burrow/internal/utmctl"
)

// controlClient defines the hypervisor control operations needed by the
// orchestrator.
//
// In production, this is satisfied by *utmctl.Client.
// In tests, this is satisfied by mock implementations.
type controlClient interface {
	// Status queries the current state of an instance.
	Status(ctx context.Context, name string) utmctl.Status

	// IPAddress queries the guest's IPv4 address ("" while unknown).
	IPAddress(ctx context.Context, name string) (string, error)

	// Exists reports whether the named instance is registered.
	Exists(ctx context.Context, name string) (bool, error)

	// Start starts or resumes an instance.
	Start(ctx context.Context, name string, hidden bool) error

	// Stop stops an instance.
	Stop(ctx context.Context, name string) error

	// Suspend pauses an instance.
	Suspend(ctx context.Context, name string) error

	// Delete removes an instance from the hypervisor registry.
	Delete(ctx context.Context, name string) error
}

// cloneEngine duplicates the golden image into a new instance.
//
// In production, this is satisfied by *clone.Engine.
type cloneEngine interface {
	Clone(ctx context.Context, label string, headless, attachDisk bool) (*clone.Result, error)
}

// resourceScanner answers arbitration questions about the fleet.
//
// In production, this is satisfied by *fleet.Scanner.
type resourceScanner interface {
	// Members returns the current fleet members.
	Members(ctx context.Context) ([]utmctl.Instance, error)

	// DisplayInUse reports whether a started instance other than
	// exclude has an active display.
	DisplayInUse(ctx context.Context, exclude string) (bool, error)

	// SharedDiskInUse reports whether a started instance other than
	// exclude holds the shared disk.
	SharedDiskInUse(ctx context.Context, exclude string) (bool, error)

	// HasDiskLink reports whether the named instance's bundle carries
	// the disk-linkage artifact.
	HasDiskLink(name string) bool

	// HasActiveDisplay reports whether the named instance's document
	// lists a display device.
	HasActiveDisplay(name string) bool
}
