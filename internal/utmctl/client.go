// Package utmctl wraps the hypervisor's control executable.
//
// Every operation shells out to utmctl and parses its textual reply at a
// narrow boundary (see parse.go). The control plane is known to emit
// spurious timeout errors under I/O load, so the client never treats a
// single failed invocation as ground truth: garbled or empty output maps
// to StatusUnknown and retry policy lives with the caller, not here.
package utmctl

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Status is a hypervisor-reported instance state.
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarted   Status = "started"
	StatusPaused    Status = "paused"
	StatusSuspended Status = "suspended"
	StatusUnknown   Status = "unknown"
)

// Instance is one row of the hypervisor's instance listing.
type Instance struct {
	UUID   string
	Name   string
	Status Status
}

// runner executes an external command and returns its combined output.
// Production uses execRunner; tests substitute a mock.
type runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Client issues commands to the hypervisor control interface.
type Client struct {
	utmctl string
	open   string
	run    runner
}

// New creates a Client using the given utmctl executable and open
// command (used for bundle registration).
func New(utmctlPath, openCommand string) *Client {
	return &Client{utmctl: utmctlPath, open: openCommand, run: execRunner{}}
}

// newWithRunner is the test constructor.
func newWithRunner(utmctlPath, openCommand string, r runner) *Client {
	return &Client{utmctl: utmctlPath, open: openCommand, run: r}
}

// Status queries the current state of an instance. Command failure or
// unrecognizable output yields StatusUnknown with no error: the caller
// re-queries rather than trusting one bad invocation.
func (c *Client) Status(ctx context.Context, name string) Status {
	out, err := c.run.Run(ctx, c.utmctl, "status", name)
	if err != nil {
		return StatusUnknown
	}
	return parseStatus(out)
}

// IPAddress queries the guest's IPv4 address. Returns "" with no error
// while the address is not yet known.
func (c *Client) IPAddress(ctx context.Context, name string) (string, error) {
	out, err := c.run.Run(ctx, c.utmctl, "ip-address", name)
	if err != nil {
		// Address queries fail routinely while the guest agent is
		// still coming up; that is "not yet", not an error.
		return "", nil
	}
	return parseIPAddress(out), nil
}

// List returns every instance known to the hypervisor.
func (c *Client) List(ctx context.Context) ([]Instance, error) {
	out, err := c.run.Run(ctx, c.utmctl, "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return parseList(out), nil
}

// Exists reports whether an instance with the given name is registered.
// Existence is derived from a fresh listing, never cached.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	instances, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	for _, inst := range instances {
		if inst.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Start starts or resumes an instance. With hidden set, the hypervisor
// is asked to keep the display window closed.
func (c *Client) Start(ctx context.Context, name string, hidden bool) error {
	args := []string{"start", name}
	if hidden {
		args = append(args, "--hide")
	}
	_, err := c.run.Run(ctx, c.utmctl, args...)
	return err
}

// Stop stops an instance.
func (c *Client) Stop(ctx context.Context, name string) error {
	_, err := c.run.Run(ctx, c.utmctl, "stop", name)
	return err
}

// Suspend pauses an instance, saving its state.
func (c *Client) Suspend(ctx context.Context, name string) error {
	_, err := c.run.Run(ctx, c.utmctl, "suspend", name)
	return err
}

// Delete removes an instance from the hypervisor's registry.
func (c *Client) Delete(ctx context.Context, name string) error {
	_, err := c.run.Run(ctx, c.utmctl, "delete", name)
	return err
}

// ExecRemote runs a command inside the guest and returns its output.
func (c *Client) ExecRemote(ctx context.Context, name string, command ...string) (string, error) {
	args := append([]string{"exec", name, "--"}, command...)
	out, err := c.run.Run(ctx, c.utmctl, args...)
	if err != nil {
		return out, fmt.Errorf("remote command failed: %w", err)
	}
	return out, nil
}

// Register imports a bundle into the hypervisor, equivalent to opening
// it in the UI. Registration completes asynchronously; callers allow a
// settling delay before relying on it.
func (c *Client) Register(ctx context.Context, bundlePath string) error {
	_, err := c.run.Run(ctx, c.open, "-g", bundlePath)
	if err != nil {
		return fmt.Errorf("failed to register bundle %s: %w", bundlePath, err)
	}
	return nil
}
