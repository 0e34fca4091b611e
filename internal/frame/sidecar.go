package frame

import (
	"encoding/xml"
	"os"
	"sync"
)

// sidecarLock serialises all sidecar file access across every Metadata
// instance and every component's worker goroutine. The runtime's private
// tag round-trip does not need real concurrency here, but a single process-
// wide lock around on-disk metadata I/O keeps the contract identical to
// wrapping a non-reentrant metadata library, per the runtime's concurrency
// model: write operations to such a library are serialised across
// components.
var sidecarLock sync.Mutex

type xmpDocument struct {
	XMLName xml.Name `xml:"xmpmeta"`
	Tags    []xmpTag `xml:"pyctools>tag"`
}

type xmpTag struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// sidecarPath returns the XMP sidecar path for a media file path.
func sidecarPath(path string) string {
	return path + ".xmp"
}

// FromFile reads the runtime's private tags from the XMP sidecar next to
// path (path + ".xmp"). A missing sidecar is not an error: m is left
// unchanged and FromFile returns (m, nil), matching the Python original's
// tolerant "no sidecar means no tags yet" behaviour. It returns m so callers
// can write `md, err := NewMetadata().FromFile(path)`.
func (m *Metadata) FromFile(path string) (*Metadata, error) {
	sidecarLock.Lock()
	defer sidecarLock.Unlock()

	data, err := os.ReadFile(sidecarPath(path))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	var doc xmpDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return m, err
	}
	m.mu.Lock()
	for _, tag := range doc.Tags {
		m.tags[tag.Name] = tag.Value
	}
	m.mu.Unlock()
	return m, nil
}

// ToFile writes the runtime's private tags to an XMP sidecar next to path.
// Embedded blobs (Exif/IPTC/XMP passthrough from a source file) are not
// round-tripped here; file-format leaves that need that own the real codec
// and are outside this runtime's scope.
func (m *Metadata) ToFile(path string) error {
	sidecarLock.Lock()
	defer sidecarLock.Unlock()

	m.mu.Lock()
	doc := xmpDocument{Tags: make([]xmpTag, 0, len(m.tags))}
	for name, value := range m.tags {
		doc.Tags = append(doc.Tags, xmpTag{Name: name, Value: value})
	}
	m.mu.Unlock()

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(path), data, 0o644)
}
