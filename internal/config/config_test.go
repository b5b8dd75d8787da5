package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileRequiresGoldenImage(t *testing.T) {
	// A missing config file is fine, but the defaults alone name no
	// golden image, so validation must reject the result.
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error: defaults have no golden image")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "golden_image: golden\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.NamePrefix != DefaultNamePrefix {
		t.Errorf("NamePrefix = %q, want %q", cfg.NamePrefix, DefaultNamePrefix)
	}
	if cfg.SSHUser != DefaultSSHUser {
		t.Errorf("SSHUser = %q, want %q", cfg.SSHUser, DefaultSSHUser)
	}
	if cfg.UtmctlPath != DefaultUtmctl {
		t.Errorf("UtmctlPath = %q, want %q", cfg.UtmctlPath, DefaultUtmctl)
	}
	if !cfg.HeadlessDefault() {
		t.Error("expected headless default to be true")
	}
	if cfg.SharedDisk != DefaultSharedDisk {
		t.Errorf("SharedDisk = %q, want %q", cfg.SharedDisk, DefaultSharedDisk)
	}
	if cfg.Poll.StartAttempts <= 0 || cfg.Poll.IPAttempts <= 0 {
		t.Errorf("poll budgets not defaulted: %+v", cfg.Poll)
	}
	if cfg.Poll.StartInterval <= 0 || cfg.Poll.IPInterval <= 0 {
		t.Errorf("poll intervals not defaulted: %+v", cfg.Poll)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
golden_image: template
image_store: /tmp/images
name_prefix: ephem-
ssh_user: dev
headless: false
shared_disk: scratch/persist.qcow2
poll:
  start_attempts: 5
  start_interval: 100ms
  ip_attempts: 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GoldenImage != "template" {
		t.Errorf("GoldenImage = %q", cfg.GoldenImage)
	}
	if cfg.HeadlessDefault() {
		t.Error("expected headless default false")
	}
	if cfg.Poll.StartAttempts != 5 {
		t.Errorf("StartAttempts = %d, want 5", cfg.Poll.StartAttempts)
	}
	if cfg.Poll.StartInterval != 100*time.Millisecond {
		t.Errorf("StartInterval = %v", cfg.Poll.StartInterval)
	}
	if want := filepath.Join("/tmp/images", "scratch/persist.qcow2"); cfg.SharedDiskPath() != want {
		t.Errorf("SharedDiskPath = %q, want %q", cfg.SharedDiskPath(), want)
	}
	if want := filepath.Join("/tmp/images", "template.utm"); cfg.GoldenBundlePath() != want {
		t.Errorf("GoldenBundlePath = %q, want %q", cfg.GoldenBundlePath(), want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing golden image", func(c *Config) { c.GoldenImage = "" }, true},
		{"golden image is a path", func(c *Config) { c.GoldenImage = "a/b" }, true},
		{"prefix with space", func(c *Config) { c.NamePrefix = "bur row-" }, true},
		{"absolute shared disk", func(c *Config) { c.SharedDisk = "/abs/disk.qcow2" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{GoldenImage: "golden"}
			cfg.Normalize()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSharedDiskNoneDisables(t *testing.T) {
	cfg := &Config{GoldenImage: "golden", SharedDisk: "none"}
	cfg.Normalize()
	if got := cfg.SharedDiskPath(); got != "" {
		t.Errorf("SharedDiskPath = %q, want empty", got)
	}
}
