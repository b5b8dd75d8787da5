// Package fleet derives shared-resource usage from the current state of
// the clone fleet.
//
// The fleet is never materialized: every question is answered by a fresh
// listing from the hypervisor plus an inspection of each started
// instance's bundle. No state is cached between decisions.
package fleet

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/burrowvm/burrow/internal/config"
	"github.com/burrowvm/burrow/internal/document"
	"github.com/burrowvm/burrow/internal/naming"
	"github.com/burrowvm/burrow/internal/utmctl"
)

// lister provides the hypervisor's instance listing.
// In production this is satisfied by *utmctl.Client.
type lister interface {
	List(ctx context.Context) ([]utmctl.Instance, error)
}

// Scanner answers arbitration questions about the fleet.
type Scanner struct {
	cfg    *config.Config
	client lister
}

// NewScanner creates a Scanner over the fleet defined by cfg.NamePrefix.
func NewScanner(cfg *config.Config, client lister) *Scanner {
	return &Scanner{cfg: cfg, client: client}
}

// Members returns the fleet members as currently known to the
// hypervisor.
func (s *Scanner) Members(ctx context.Context) ([]utmctl.Instance, error) {
	instances, err := s.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan fleet: %w", err)
	}
	var members []utmctl.Instance
	for _, inst := range instances {
		if naming.InFleet(s.cfg.NamePrefix, inst.Name) {
			members = append(members, inst)
		}
	}
	return members, nil
}

// DisplayInUse reports whether any started fleet instance other than
// exclude has an active display. At most one instance may hold the
// display at a time; a second request is vetoed outright.
func (s *Scanner) DisplayInUse(ctx context.Context, exclude string) (bool, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return false, err
	}
	for _, inst := range members {
		if inst.Status != utmctl.StatusStarted || inst.Name == exclude {
			continue
		}
		if s.hasActiveDisplay(inst.Name) {
			return true, nil
		}
	}
	return false, nil
}

// SharedDiskInUse reports whether any started fleet instance other than
// exclude holds the shared disk. Holding is inferred from the presence
// of the disk-linkage artifact in the instance's bundle.
func (s *Scanner) SharedDiskInUse(ctx context.Context, exclude string) (bool, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return false, err
	}
	for _, inst := range members {
		if inst.Status != utmctl.StatusStarted || inst.Name == exclude {
			continue
		}
		if s.hasDiskLink(inst.Name) {
			return true, nil
		}
	}
	return false, nil
}

// HasDiskLink reports whether the named instance's bundle carries the
// disk-linkage artifact, regardless of its running state.
func (s *Scanner) HasDiskLink(name string) bool {
	return s.hasDiskLink(name)
}

// HasActiveDisplay reports whether the named instance's document lists
// a display device. Unreadable documents count as headless: arbitration
// degrades open rather than blocking every request on a corrupt bundle.
func (s *Scanner) HasActiveDisplay(name string) bool {
	return s.hasActiveDisplay(name)
}

func (s *Scanner) hasActiveDisplay(name string) bool {
	bundle := naming.BundlePath(s.cfg.ImageStore, name)
	doc, err := document.Load(naming.DocumentPath(bundle))
	if err != nil {
		log.Printf("Warning: failed to inspect document for %s: %v", name, err)
		return false
	}
	return doc.HasActiveDisplay()
}

func (s *Scanner) hasDiskLink(name string) bool {
	bundle := naming.BundlePath(s.cfg.ImageStore, name)
	_, err := os.Lstat(naming.DiskLinkPath(bundle))
	return err == nil
}
