// Package document parses and rewrites an instance's configuration
// document (the bundle's config.plist).
//
// The document is decoded into generic maps rather than typed structs so
// that keys this package does not understand survive a load/mutate/save
// round trip untouched. Mutations are targeted field replacements; the
// surrounding structure is preserved.
package document

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/google/uuid"
	"howett.net/plist"
)

// Top-level document keys.
const (
	keyInformation = "Information"
	keyNetwork     = "Network"
	keyDrive       = "Drive"
	keyDisplay     = "Display"
)

// Document is a loaded configuration document.
type Document struct {
	root map[string]interface{}
}

// Load reads and parses the configuration document at path. A document
// that cannot be read or parsed is fatal for the caller: cloning has no
// identity-bearing target without it.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration document: %w", err)
	}

	var root map[string]interface{}
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse configuration document %s: %w", path, err)
	}

	return &Document{root: root}, nil
}

// Save writes the document back to path as an XML property list.
func (d *Document) Save(path string) error {
	var buf bytes.Buffer
	enc := plist.NewEncoderForFormat(&buf, plist.XMLFormat)
	enc.Indent("\t")
	if err := enc.Encode(d.root); err != nil {
		return fmt.Errorf("failed to encode configuration document: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration document: %w", err)
	}
	return nil
}

// Name returns the instance name recorded in the document.
func (d *Document) Name() string {
	info, ok := d.root[keyInformation].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := info["Name"].(string)
	return name
}

// UUID returns the instance identifier recorded in the document.
func (d *Document) UUID() string {
	info, ok := d.root[keyInformation].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := info["UUID"].(string)
	return id
}

// Reidentify replaces the document's name and regenerates its unique
// instance identifier. Both must change on every clone so the hypervisor
// treats the copy as a new instance.
func (d *Document) Reidentify(newName string) {
	info, ok := d.root[keyInformation].(map[string]interface{})
	if !ok {
		info = map[string]interface{}{}
		d.root[keyInformation] = info
	}
	info["Name"] = newName
	info["UUID"] = uuid.NewString()
}

// RegenerateMAC replaces the network adapter's hardware address with a
// freshly generated one and returns it. The first byte is fixed at 0x02
// (locally administered, unicast); the remaining five are random.
// Uniqueness across the fleet rests on the randomness, not a registry.
func (d *Document) RegenerateMAC() (string, error) {
	mac, err := generateMAC()
	if err != nil {
		return "", err
	}

	adapters, _ := d.root[keyNetwork].([]interface{})
	if len(adapters) == 0 {
		adapters = []interface{}{map[string]interface{}{}}
		d.root[keyNetwork] = adapters
	}
	adapter, ok := adapters[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("malformed network adapter entry in configuration document")
	}
	adapter["MacAddress"] = mac

	return mac, nil
}

// generateMAC produces a locally-administered unicast hardware address
// in colon-hex form.
func generateMAC() (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[1:]); err != nil {
		return "", fmt.Errorf("failed to generate MAC address: %w", err)
	}
	b[0] = 0x02
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		b[0], b[1], b[2], b[3], b[4], b[5]), nil
}

// StripDisplay empties the display-device list, leaving the instance
// headless. Idempotent.
func (d *Document) StripDisplay() {
	d.root[keyDisplay] = []interface{}{}
}

// HasActiveDisplay reports whether the document lists any display
// device.
func (d *Document) HasActiveDisplay() bool {
	displays, _ := d.root[keyDisplay].([]interface{})
	return len(displays) > 0
}

// AttachDrive appends a storage-device entry referencing imageName on
// the virtio bus, read-write. Existing drive entries are preserved.
func (d *Document) AttachDrive(imageName string) {
	drives, _ := d.root[keyDrive].([]interface{})
	drives = append(drives, map[string]interface{}{
		"Identifier": uuid.NewString(),
		"ImageName":  imageName,
		"Interface":  "VirtIO",
		"ReadOnly":   false,
	})
	d.root[keyDrive] = drives
}

// DriveCount returns the number of storage-device entries.
func (d *Document) DriveCount() int {
	drives, _ := d.root[keyDrive].([]interface{})
	return len(drives)
}
