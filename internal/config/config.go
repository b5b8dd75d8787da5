// Package config loads the process-wide burrow configuration.
//
// The configuration is read once at startup and treated as immutable for
// the rest of the run; every component receives it by value through its
// constructor rather than consulting global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete burrow configuration.
type Config struct {
	// ImageStore is the directory holding the golden image and all clone
	// bundles. Defaults to the UTM document store.
	ImageStore string `yaml:"image_store"`

	// GoldenImage is the name of the read-only template bundle that all
	// clones derive from (without the .utm extension).
	GoldenImage string `yaml:"golden_image"`

	// NamePrefix is prepended to every clone label to form the instance
	// name. All instances sharing this prefix form the fleet.
	NamePrefix string `yaml:"name_prefix"`

	// SSHUser is the remote-login username handed to the external ssh
	// binary after IP discovery.
	SSHUser string `yaml:"ssh_user"`

	// Headless controls whether clones are created without a display
	// device by default. A gui request overrides this per invocation.
	Headless *bool `yaml:"headless,omitempty"`

	// SharedDisk is the path of the shared persistent volume, relative to
	// ImageStore. Defaults to "shared.qcow2"; the literal value "none"
	// disables shared-disk attachment entirely.
	SharedDisk string `yaml:"shared_disk,omitempty"`

	// UtmctlPath is the hypervisor control executable. Defaults to
	// "utmctl" resolved via PATH.
	UtmctlPath string `yaml:"utmctl_path,omitempty"`

	// OpenCommand registers a cloned bundle with the hypervisor.
	// Defaults to "open".
	OpenCommand string `yaml:"open_command,omitempty"`

	Poll PollConfig `yaml:"poll,omitempty"`
}

// PollConfig bounds the convergence and IP-discovery loops. Attempt
// ceilings are hard: exhaustion is reported, never retried further.
type PollConfig struct {
	StartAttempts  int           `yaml:"start_attempts"`
	StartInterval  time.Duration `yaml:"start_interval"`
	ResumeAttempts int           `yaml:"resume_attempts"`
	IPAttempts     int           `yaml:"ip_attempts"`
	IPInterval     time.Duration `yaml:"ip_interval"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
}

// Default configuration values.
const (
	DefaultNamePrefix  = "burrow-"
	DefaultSSHUser     = "burrow"
	DefaultUtmctl      = "utmctl"
	DefaultOpenCommand = "open"
	DefaultSharedDisk  = "shared.qcow2"
)

// DefaultImageStore returns the hypervisor's document directory for the
// current user.
func DefaultImageStore() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Library", "Containers", "com.utmapp.UTM", "Data", "Documents")
}

// DefaultPath returns the location of the user configuration file.
// BURROW_CONFIG overrides it.
func DefaultPath() string {
	if p := os.Getenv("BURROW_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "burrow.yaml"
	}
	return filepath.Join(home, ".config", "burrow", "config.yaml")
}

// Load reads the configuration file at path. A missing file is not an
// error: the defaults describe a usable setup.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Normalize fills defaults and expands a leading ~ in paths. Called
// automatically by Load before validation.
func (c *Config) Normalize() {
	c.GoldenImage = strings.TrimSpace(c.GoldenImage)
	c.NamePrefix = strings.TrimSpace(c.NamePrefix)

	if c.ImageStore == "" {
		c.ImageStore = DefaultImageStore()
	} else {
		c.ImageStore = expandHome(c.ImageStore)
	}
	if c.NamePrefix == "" {
		c.NamePrefix = DefaultNamePrefix
	}
	if c.SSHUser == "" {
		c.SSHUser = DefaultSSHUser
	}
	if c.Headless == nil {
		headless := true
		c.Headless = &headless
	}
	if c.UtmctlPath == "" {
		c.UtmctlPath = DefaultUtmctl
	}
	if c.OpenCommand == "" {
		c.OpenCommand = DefaultOpenCommand
	}
	if c.SharedDisk == "" {
		c.SharedDisk = DefaultSharedDisk
	}

	if c.Poll.StartAttempts <= 0 {
		c.Poll.StartAttempts = 30
	}
	if c.Poll.StartInterval <= 0 {
		c.Poll.StartInterval = 2 * time.Second
	}
	if c.Poll.ResumeAttempts <= 0 {
		c.Poll.ResumeAttempts = 10
	}
	if c.Poll.IPAttempts <= 0 {
		c.Poll.IPAttempts = 30
	}
	if c.Poll.IPInterval <= 0 {
		c.Poll.IPInterval = 2 * time.Second
	}
	if c.Poll.SettleDelay <= 0 {
		c.Poll.SettleDelay = 2 * time.Second
	}
}

// Validate checks the configuration for structural errors. It does not
// touch the filesystem; bundle existence is checked at use sites.
func (c *Config) Validate() error {
	if c.GoldenImage == "" {
		return fmt.Errorf("golden_image is required")
	}
	if strings.ContainsAny(c.GoldenImage, "/") {
		return fmt.Errorf("golden_image must be a bundle name, not a path: %q", c.GoldenImage)
	}
	if strings.ContainsAny(c.NamePrefix, "/ ") {
		return fmt.Errorf("name_prefix must not contain slashes or spaces: %q", c.NamePrefix)
	}
	if filepath.IsAbs(c.SharedDisk) {
		return fmt.Errorf("shared_disk must be relative to image_store: %q", c.SharedDisk)
	}
	return nil
}

// HeadlessDefault reports whether clones are headless unless a gui
// request says otherwise.
func (c *Config) HeadlessDefault() bool {
	return c.Headless == nil || *c.Headless
}

// SharedDiskPath returns the absolute path of the shared persistent
// volume, or "" when shared-disk attachment is disabled.
func (c *Config) SharedDiskPath() string {
	if c.SharedDisk == "" || c.SharedDisk == "none" {
		return ""
	}
	return filepath.Join(c.ImageStore, c.SharedDisk)
}

// GoldenBundlePath returns the absolute path of the golden image bundle.
func (c *Config) GoldenBundlePath() string {
	return filepath.Join(c.ImageStore, c.GoldenImage+".utm")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}
