package vm

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/burrowvm/burrow/internal/config"
	"github.com/burrowvm/burrow/internal/naming"
	"github.com/burrowvm/burrow/internal/utmctl"
)

// EnsureOptions control a single EnsureRunning request.
type EnsureOptions struct {
	// GUI requests a visible display. Subject to the display veto.
	GUI bool

	// AttachDisk requests the shared persistent disk. Subject to
	// silent downgrade when the disk is held elsewhere.
	AttachDisk bool
}

// Orchestrator drives the clone lifecycle state machine.
type Orchestrator struct {
	cfg    *config.Config
	client controlClient
	engine cloneEngine
	scan   resourceScanner

	lockPath string
	sleep    func(time.Duration)
}

// New creates an Orchestrator with production collaborators.
func New(cfg *config.Config, client controlClient, engine cloneEngine, scan resourceScanner) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		engine:   engine,
		scan:     scan,
		lockPath: filepath.Join(cfg.ImageStore, ".burrow.lock"),
		sleep:    time.Sleep,
	}
}

// EnsureRunning makes sure the instance for label exists and is
// running, cloning it from the golden image if absent.
//
// Arbitration runs on every call, not only the creation path, with the
// target instance excluded from the scan so an instance that already
// holds a resource can be re-ensured. A gui collision is fatal; a disk
// collision downgrades to a warning and the instance proceeds without
// persistence.
//
// Convergence is advisory: if status polling exhausts its budget the
// instance is returned with its best-known state, and IP discovery
// downstream will surface the problem with a clear timeout.
func (o *Orchestrator) EnsureRunning(ctx context.Context, label string, opts EnsureOptions) (*Instance, error) {
	if err := naming.ValidateLabel(label); err != nil {
		return nil, err
	}
	name := naming.InstanceName(o.cfg.NamePrefix, label)

	// Serialize arbitrate+clone+start across concurrent invocations.
	// Without this, two sessions could both observe "display not in
	// use" and both proceed.
	unlock := o.acquireLock(ctx)
	defer unlock()

	attachDisk := opts.AttachDisk
	if opts.GUI {
		inUse, err := o.scan.DisplayInUse(ctx, name)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, fmt.Errorf("%w: stop the running gui instance first", ErrDisplayInUse)
		}
	}
	if attachDisk {
		inUse, err := o.scan.SharedDiskInUse(ctx, name)
		if err != nil {
			return nil, err
		}
		if inUse {
			log.Printf("Warning: shared disk is attached to a running instance, continuing without it")
			attachDisk = false
		}
	}

	exists, err := o.client.Exists(ctx, name)
	if err != nil {
		return nil, err
	}

	inst := &Instance{Name: name, Label: label}
	if !exists {
		headless := !opts.GUI && o.cfg.HeadlessDefault()
		res, err := o.engine.Clone(ctx, label, headless, attachDisk)
		if err != nil {
			return nil, err
		}
		inst.UUID = res.UUID
		inst.MACAddress = res.MACAddress
		inst.DisplayEnabled = res.DisplayEnabled
		inst.HasSharedDisk = res.HasSharedDisk
	} else {
		inst.DisplayEnabled = o.scan.HasActiveDisplay(name)
		inst.HasSharedDisk = o.scan.HasDiskLink(name)
	}

	inst.Status = o.converge(ctx, name, !opts.GUI)
	return inst, nil
}

// converge drives the instance toward started based on a fresh status
// query, then polls until the state is observed or the attempt budget
// runs out.
func (o *Orchestrator) converge(ctx context.Context, name string, hidden bool) utmctl.Status {
	status := o.client.Status(ctx, name)
	switch status {
	case utmctl.StatusStarted:
		// Already running; nothing to issue.
		return status

	case utmctl.StatusPaused, utmctl.StatusSuspended:
		log.Printf("Resuming %s...", name)
		o.issueStart(ctx, name, hidden)
		// Resume is expected near-instant, so the budget is shorter.
		return o.awaitStatus(ctx, name, utmctl.StatusStarted, o.cfg.Poll.ResumeAttempts)

	default:
		// Stopped, or unknown: the control plane misreports under
		// load, and a freshly registered clone can briefly report
		// nothing at all. Starting a started instance is harmless,
		// so act on the best-known state.
		log.Printf("Starting %s...", name)
		o.issueStart(ctx, name, hidden)
		return o.awaitStatus(ctx, name, utmctl.StatusStarted, o.cfg.Poll.StartAttempts)
	}
}

// issueStart issues a start command. The command's own outcome is not
// trusted: failures are logged and the subsequent status polling decides
// what actually happened.
func (o *Orchestrator) issueStart(ctx context.Context, name string, hidden bool) {
	if err := o.client.Start(ctx, name, hidden); err != nil {
		log.Printf("Warning: start command reported an error (verifying actual state): %v", err)
	}
}

// awaitStatus polls until the wanted status is observed or attempts are
// exhausted. Exhaustion returns the last observed status; the caller
// treats it as advisory.
func (o *Orchestrator) awaitStatus(ctx context.Context, name string, want utmctl.Status, attempts int) utmctl.Status {
	status := utmctl.StatusUnknown
	for i := 0; i < attempts; i++ {
		status = o.client.Status(ctx, name)
		if status == want {
			return status
		}
		if ctx.Err() != nil {
			return status
		}
		o.sleep(o.cfg.Poll.StartInterval)
	}
	log.Printf("Warning: %s did not reach %q within %d attempts (last seen: %q)", name, want, attempts, status)
	return status
}

// AwaitIP polls for the instance's IPv4 address with a bounded budget.
// On exhaustion it returns ErrIPTimeout and points at the serial
// console rather than retrying indefinitely.
func (o *Orchestrator) AwaitIP(ctx context.Context, name string) (string, error) {
	for i := 0; i < o.cfg.Poll.IPAttempts; i++ {
		ip, err := o.client.IPAddress(ctx, name)
		if err != nil {
			log.Printf("Warning: address query failed: %v", err)
		}
		if ip != "" {
			return ip, nil
		}
		if ctx.Err() != nil {
			break
		}
		o.sleep(o.cfg.Poll.IPInterval)
	}
	return "", fmt.Errorf("%w after %d attempts; inspect the console with 'utmctl attach %s'",
		ErrIPTimeout, o.cfg.Poll.IPAttempts, name)
}

// acquireLock takes the cross-process advisory lock and returns its
// release function. A lock that cannot be taken (unsupported
// filesystem, permissions) degrades to a warning: burrow then behaves
// like the lockless read-then-act original.
func (o *Orchestrator) acquireLock(ctx context.Context) func() {
	lock := flock.New(o.lockPath)
	ok, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil || !ok {
		log.Printf("Warning: could not take advisory lock %s (proceeding unlocked): %v", o.lockPath, err)
		return func() {}
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("Warning: failed to release advisory lock: %v", err)
		}
	}
}
