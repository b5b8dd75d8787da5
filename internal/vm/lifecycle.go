package vm

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/burrowvm/burrow/internal/naming"
	"github.com/burrowvm/burrow/internal/utmctl"
)

// Stop stops the instance for label.
func (o *Orchestrator) Stop(ctx context.Context, label string) error {
	name, err := o.lookup(ctx, label)
	if err != nil {
		return err
	}
	log.Printf("Stopping %s...", name)
	if err := o.client.Stop(ctx, name); err != nil {
		// Verify instead of trusting the reported failure.
		o.sleep(o.cfg.Poll.StartInterval)
		if o.client.Status(ctx, name) != utmctl.StatusStopped {
			return fmt.Errorf("failed to stop %s: %w", name, err)
		}
		log.Printf("Warning: stop command reported an error but %s is stopped", name)
	}
	return nil
}

// Suspend pauses the instance for label, saving its state.
func (o *Orchestrator) Suspend(ctx context.Context, label string) error {
	name, err := o.lookup(ctx, label)
	if err != nil {
		return err
	}
	log.Printf("Suspending %s...", name)
	if err := o.client.Suspend(ctx, name); err != nil {
		return fmt.Errorf("failed to suspend %s: %w", name, err)
	}
	return nil
}

// Destroy removes the instance for label entirely: stops it if running,
// deletes it from the hypervisor, and removes the bundle directory.
// Bundle removal is best-effort; a leftover directory only wastes space.
func (o *Orchestrator) Destroy(ctx context.Context, label string) error {
	name, err := o.lookup(ctx, label)
	if err != nil {
		return err
	}

	if status := o.client.Status(ctx, name); status == utmctl.StatusStarted || status == utmctl.StatusPaused {
		log.Printf("Stopping %s before delete...", name)
		if err := o.client.Stop(ctx, name); err != nil {
			log.Printf("Warning: stop before delete reported an error: %v", err)
		}
		o.awaitStatus(ctx, name, utmctl.StatusStopped, o.cfg.Poll.ResumeAttempts)
	}

	log.Printf("Deleting %s...", name)
	if err := o.client.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}

	bundle := naming.BundlePath(o.cfg.ImageStore, name)
	if err := os.RemoveAll(bundle); err != nil {
		log.Printf("Warning: failed to remove bundle %s: %v", bundle, err)
	}
	return nil
}

// List returns the fleet with per-instance display and shared-disk
// state, derived from a fresh hypervisor listing and bundle inspection.
func (o *Orchestrator) List(ctx context.Context) ([]Instance, error) {
	members, err := o.scan.Members(ctx)
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(members))
	for _, m := range members {
		instances = append(instances, Instance{
			Name:           m.Name,
			Label:          naming.LabelFromInstance(o.cfg.NamePrefix, m.Name),
			UUID:           m.UUID,
			Status:         m.Status,
			DisplayEnabled: o.scan.HasActiveDisplay(m.Name),
			HasSharedDisk:  o.scan.HasDiskLink(m.Name),
		})
	}
	return instances, nil
}

// Status returns the instance's current status.
func (o *Orchestrator) Status(ctx context.Context, label string) (utmctl.Status, error) {
	name, err := o.lookup(ctx, label)
	if err != nil {
		return utmctl.StatusUnknown, err
	}
	return o.client.Status(ctx, name), nil
}

// lookup resolves a label to its instance name, requiring the instance
// to exist.
func (o *Orchestrator) lookup(ctx context.Context, label string) (string, error) {
	if err := naming.ValidateLabel(label); err != nil {
		return "", err
	}
	name := naming.InstanceName(o.cfg.NamePrefix, label)
	exists, err := o.client.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return name, nil
}
