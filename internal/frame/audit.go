package frame

import (
	"strings"
	"time"
)

// AuditOptions controls how SetAudit extends the audit trail. The zero
// value plus WithHistory: true is the common case.
type AuditOptions struct {
	// WithHistory includes the previous audit trail before the new text.
	// Components normally want this, including right after MergeAudit; it is
	// false only when a component is deliberately starting a fresh trail.
	WithHistory bool
	// WithDate appends the current time, primarily used when a leaf writes
	// a frame out to a file and wants a timestamp in the provenance.
	WithDate bool
	// WithConfig, when non-empty, is appended verbatim after text. Callers
	// render it themselves, typically via a config tree's audit string.
	WithConfig string
}

// DefaultAuditOptions returns the common case: include prior history, no
// date, no config dump.
func DefaultAuditOptions() AuditOptions {
	return AuditOptions{WithHistory: true}
}

// SetAudit appends text to the audit trail in the runtime's standard
// format: the accumulated history (if requested), the new text, an optional
// rendered config block, and a trailer line naming the component that did
// the work, e.g.:
//
//	data = Resize(data)
//	    width: 640, height: 480
//	    <resize.Resize>
//
// qualifiedName should be the component's fully-qualified type name (its
// package path plus type, mirroring the Python original's
// "module.ClassName"). text should describe what was done and end with a
// newline.
func (m *Metadata) SetAudit(qualifiedName, text string, opts AuditOptions) {
	var sb strings.Builder
	if opts.WithHistory {
		prior, _ := m.Get("audit")
		sb.WriteString(prior)
	}
	sb.WriteString(text)
	if opts.WithConfig != "" {
		sb.WriteString(opts.WithConfig)
	}
	sb.WriteString("    <")
	sb.WriteString(qualifiedName)
	sb.WriteString(">\n")
	if opts.WithDate {
		sb.WriteString("    <")
		sb.WriteString(time.Now().Format(time.RFC3339))
		sb.WriteString(">\n")
	}
	m.Set("audit", sb.String())
}

// AuditPart names one contributor to a merged audit trail: a label (such as
// "Y" or "UV") and the metadata whose audit trail is to be nested under that
// label. Order matters and is preserved as given, unlike a plain map.
type AuditPart struct {
	Name     string
	Metadata *Metadata
}

// MergeAudit combines the audit trails of several input metadata objects
// into one, each wrapped in a braced, indented block labelled by its part
// name:
//
//	Y = {
//	    ...prior Y audit...
//	    }
//	UV = {
//	    ...prior UV audit...
//	    }
//
// The merged result becomes m's new audit trail (replacing any of its own);
// callers normally call SetAudit with WithHistory: true immediately
// afterwards to append what the merging component itself did.
func (m *Metadata) MergeAudit(parts []AuditPart) {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.Name)
		sb.WriteString(" = {\n")
		audit, _ := part.Metadata.Get("audit")
		for _, line := range splitAuditLines(audit) {
			sb.WriteString("    ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("    }\n")
	}
	m.Set("audit", sb.String())
}

// splitAuditLines mirrors Python's str.splitlines(): a trailing newline
// does not produce a final empty element, and an empty string yields no
// lines at all.
func splitAuditLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
