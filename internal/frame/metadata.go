package frame

import (
	"fmt"
	"sync"
)

// Metadata carries "data about the data" that travels alongside a Frame: a
// private tag/value map (the audit trail lives under the "audit" tag),
// plus opaque embedded blobs standing in for Exif/IPTC/XMP data copied
// through verbatim from a source file. The runtime never interprets the
// embedded blobs; it only guarantees round-trip of its own private tags.
type Metadata struct {
	mu       sync.Mutex
	tags     map[string]string
	embedded map[string][]byte
}

// NewMetadata returns an empty Metadata with an empty audit trail.
func NewMetadata() *Metadata {
	return &Metadata{
		tags:     map[string]string{"audit": ""},
		embedded: make(map[string][]byte),
	}
}

// Get returns the value stored under tag, or ("", false) if unset.
func (m *Metadata) Get(tag string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tags[tag]
	return v, ok
}

// Set stores value under tag. Setting an empty string still counts as
// present; callers that want to delete a tag should not call Set.
func (m *Metadata) Set(tag, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[tag] = value
}

// Delete removes tag entirely.
func (m *Metadata) Delete(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags, tag)
}

// SetEmbedded stores an opaque embedded-metadata blob (e.g. a raw Exif
// segment) under name, copied through verbatim by file-format leaves.
func (m *Metadata) SetEmbedded(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.embedded[name] = cp
}

// Embedded returns the embedded blob stored under name, if any.
func (m *Metadata) Embedded(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.embedded[name]
	return v, ok
}

// Copy replaces m's contents with a deep copy of other's. It returns m so
// callers can chain it, e.g. `frame.Metadata.Copy(other)`.
func (m *Metadata) Copy(other *Metadata) *Metadata {
	other.mu.Lock()
	tags := make(map[string]string, len(other.tags))
	for k, v := range other.tags {
		tags[k] = v
	}
	embedded := make(map[string][]byte, len(other.embedded))
	for k, v := range other.embedded {
		cp := make([]byte, len(v))
		copy(cp, v)
		embedded[k] = cp
	}
	other.mu.Unlock()

	m.mu.Lock()
	m.tags = tags
	m.embedded = embedded
	m.mu.Unlock()
	return m
}

// Clone returns an independent deep copy of m.
func (m *Metadata) Clone() *Metadata {
	return NewMetadata().Copy(m)
}

// ImageSize looks up frame dimensions from whichever size tags are present,
// preferring the runtime's own "xlen"/"ylen" private tags and falling back
// to values a file-format leaf may have copied in under the same names.
func (m *Metadata) ImageSize() (width, height int, ok bool) {
	xs, xok := m.Get("xlen")
	ys, yok := m.Get("ylen")
	if !xok || !yok {
		return 0, 0, false
	}
	x, xerr := parseDimension(xs)
	y, yerr := parseDimension(ys)
	if xerr != nil || yerr != nil {
		return 0, 0, false
	}
	return x, y, true
}

func parseDimension(s string) (int, error) {
	var n int
	_, err := fmt.Sscan(s, &n)
	return n, err
}
