// Package clone duplicates the golden image bundle and re-identifies
// the copy so the hypervisor accepts it as a new instance.
package clone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/burrowvm/burrow/internal/config"
	"github.com/burrowvm/burrow/internal/document"
	"github.com/burrowvm/burrow/internal/naming"
)

// registrar registers a cloned bundle with the hypervisor.
// In production this is satisfied by *utmctl.Client.
type registrar interface {
	Register(ctx context.Context, bundlePath string) error
}

// ErrGoldenImageMissing is returned when the configured golden image
// bundle does not exist. Non-retryable; the image store needs fixing.
var ErrGoldenImageMissing = errors.New("golden image not found")

// Result describes a freshly cloned instance.
type Result struct {
	Name           string
	UUID           string
	MACAddress     string
	DisplayEnabled bool
	HasSharedDisk  bool
	BundlePath     string
}

// Engine performs copy-on-write duplication of the golden image.
type Engine struct {
	cfg       *config.Config
	reg       registrar
	sleep     func(time.Duration)
	duplicate func(src, dst string) error
}

// NewEngine creates an Engine using cfg and the given registrar.
func NewEngine(cfg *config.Config, reg registrar) *Engine {
	return &Engine{
		cfg:       cfg,
		reg:       reg,
		sleep:     time.Sleep,
		duplicate: cloneTree,
	}
}

// Clone duplicates the golden image into a new bundle named for label,
// mutates its configuration document, and registers it with the
// hypervisor.
//
// The copy lands in a temporary path and is renamed into place only
// after every mutation succeeds, so a crash mid-clone never leaves a
// half-built bundle under the final name.
func (e *Engine) Clone(ctx context.Context, label string, headless, attachDisk bool) (*Result, error) {
	name := naming.InstanceName(e.cfg.NamePrefix, label)
	golden := e.cfg.GoldenBundlePath()
	target := naming.BundlePath(e.cfg.ImageStore, name)

	// The golden image must exist. Fatal, non-retryable.
	if _, err := os.Stat(golden); err != nil {
		return nil, fmt.Errorf("%w: %q at %s", ErrGoldenImageMissing, e.cfg.GoldenImage, golden)
	}
	if _, err := os.Stat(target); err == nil {
		return nil, fmt.Errorf("bundle already exists: %s", target)
	}

	partial := target + ".partial"
	log.Printf("Cloning %s -> %s...", golden, target)
	if err := e.duplicate(golden, partial); err != nil {
		removePartial(partial)
		return nil, fmt.Errorf("failed to duplicate golden image: %w", err)
	}

	result, err := e.mutateBundle(partial, name, headless, attachDisk)
	if err != nil {
		removePartial(partial)
		return nil, err
	}

	// The rename is the commit point: before it the clone is invisible,
	// after it the bundle is complete.
	if err := os.Rename(partial, target); err != nil {
		removePartial(partial)
		return nil, fmt.Errorf("failed to move bundle into place: %w", err)
	}
	result.BundlePath = target

	log.Printf("Registering bundle with hypervisor...")
	if err := e.reg.Register(ctx, target); err != nil {
		// Registration is issued through the same flaky control plane
		// as everything else; the orchestrator re-queries existence
		// before acting, so a reported failure here is advisory.
		log.Printf("Warning: bundle registration reported an error: %v", err)
	}
	e.sleep(e.cfg.Poll.SettleDelay)

	return result, nil
}

// mutateBundle rewrites the copied bundle's document: re-identify,
// regenerate the MAC, optionally strip the display and attach the
// shared disk, then persist.
func (e *Engine) mutateBundle(bundle, name string, headless, attachDisk bool) (*Result, error) {
	docPath := naming.DocumentPath(bundle)
	doc, err := document.Load(docPath)
	if err != nil {
		return nil, err
	}

	doc.Reidentify(name)
	mac, err := doc.RegenerateMAC()
	if err != nil {
		return nil, err
	}

	if headless {
		doc.StripDisplay()
	}

	hasDisk := false
	if attachDisk {
		hasDisk, err = e.attachSharedDisk(bundle, doc)
		if err != nil {
			return nil, err
		}
	}

	if err := doc.Save(docPath); err != nil {
		return nil, err
	}

	return &Result{
		Name:           name,
		UUID:           doc.UUID(),
		MACAddress:     mac,
		DisplayEnabled: doc.HasActiveDisplay(),
		HasSharedDisk:  hasDisk,
	}, nil
}

// attachSharedDisk links the shared persistent volume into the bundle
// and appends the corresponding storage-device entry. A missing backing
// file degrades to a warning: the clone proceeds without persistence.
func (e *Engine) attachSharedDisk(bundle string, doc *document.Document) (bool, error) {
	diskPath := e.cfg.SharedDiskPath()
	if diskPath == "" {
		log.Printf("Warning: shared disk requested but not configured, continuing without it")
		return false, nil
	}
	if _, err := os.Stat(diskPath); err != nil {
		log.Printf("Warning: shared disk backing file %s not found, continuing without it", diskPath)
		return false, nil
	}

	link := naming.DiskLinkPath(bundle)
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return false, fmt.Errorf("failed to create bundle data directory: %w", err)
	}
	if err := os.Symlink(diskPath, link); err != nil {
		return false, fmt.Errorf("failed to create disk link: %w", err)
	}
	doc.AttachDrive(naming.DiskLinkName)

	return true, nil
}

// removePartial deletes a partially built bundle, best-effort.
func removePartial(path string) {
	if err := os.RemoveAll(path); err != nil {
		log.Printf("Warning: failed to remove partial bundle %s: %v", path, err)
	}
}

// copyTree recursively copies a bundle directory, preserving symlinks
// and file modes. Used directly on platforms without a copy-on-write
// syscall and as the fallback when clonefile refuses the source.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)

	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil

	default:
		return copyFile(src, dst, info.Mode().Perm())
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
