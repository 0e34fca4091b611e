// Package compound implements the Compound component: a named group of
// child components presented behind one configuration root and one
// external input/output surface, wired internally (and to the outside
// world) by direct, zero-overhead dispatch rather than an event loop of
// its own. A Compound has no worker and no queue; "self.input"/
// "self.output" linkages are plain Go method references resolved once at
// construction time.
package compound

import (
	"fmt"
	"time"

	"github.com/pyctools/runtime/internal/component"
	"github.com/pyctools/runtime/internal/config"
	"github.com/pyctools/runtime/internal/frame"
)

// selfToken is the linkage endpoint naming a Compound's own exterior
// surface, matching the original implementation's "self" sentinel.
const selfToken = "self"

// Linkage binds one component's named output to another's named input
// within a Compound, or to/from the Compound's own exterior surface via
// selfToken ("self"). SrcChild/DstChild name an entry in the Compound's
// children map; SrcPort/DstPort name the output/input port on that side.
type Linkage struct {
	SrcChild, SrcPort string
	DstChild, DstPort string
}

// ChildParam names one leaf a high-level config_map entry broadcasts to:
// the child component's name and the leaf's name within that child's own
// Parent subtree.
type ChildParam struct {
	Child string
	Leaf  string
}

// externalOutput is one exterior output port: it remembers which child's
// output it forwards Bind calls to, so Bind/BindTo can be called on the
// Compound the same way they are called on a plain Component.
type externalOutput struct {
	childName string
	childPort string
}

// Compound groups named children under one configuration root and one
// external input/output surface, with direct wire-through linkages.
type Compound struct {
	Name string

	childOrder []string
	children   map[string]*component.Component

	// inputName -> the child input buffer an exterior Input call forwards
	// to directly, with no queue of the Compound's own in between.
	inputs map[string]*component.InputBuffer

	outputOrder []string
	outputs     map[string]externalOutput

	configMap map[string][]ChildParam
}

// New builds a Compound named name around children, applying linkages.
// Each linkage is resolved into one of three wirings:
//
//   - SrcChild == "self": the Compound gains an external input named
//     SrcPort that forwards directly into children[DstChild]'s DstPort
//     input buffer.
//   - DstChild == "self": the Compound gains an external output named
//     DstPort; Bind/BindTo called on that output forward to
//     children[SrcChild]'s SrcPort output.
//   - neither is "self": children[SrcChild] is bound directly to
//     children[DstChild]'s DstPort, exactly as two top-level components
//     would be connected, with the Compound playing no further part.
func New(name string, children map[string]*component.Component, linkages []Linkage) (*Compound, error) {
	c := &Compound{
		Name:     name,
		children: children,
		inputs:   make(map[string]*component.InputBuffer),
		outputs:  make(map[string]externalOutput),
	}
	for childName := range children {
		c.childOrder = append(c.childOrder, childName)
	}

	for _, l := range linkages {
		switch {
		case l.SrcChild == selfToken:
			dst, ok := children[l.DstChild]
			if !ok {
				return nil, fmt.Errorf("compound %q: linkage refers to unknown child %q", name, l.DstChild)
			}
			buf, ok := dst.InputBuffer(l.DstPort)
			if !ok {
				return nil, fmt.Errorf("compound %q: child %q has no input %q", name, l.DstChild, l.DstPort)
			}
			c.inputs[l.SrcPort] = buf
		case l.DstChild == selfToken:
			if _, exists := children[l.SrcChild]; !exists {
				return nil, fmt.Errorf("compound %q: linkage refers to unknown child %q", name, l.SrcChild)
			}
			c.outputs[l.DstPort] = externalOutput{childName: l.SrcChild, childPort: l.SrcPort}
			c.outputOrder = append(c.outputOrder, l.DstPort)
		default:
			src, ok := children[l.SrcChild]
			if !ok {
				return nil, fmt.Errorf("compound %q: linkage refers to unknown child %q", name, l.SrcChild)
			}
			dst, ok := children[l.DstChild]
			if !ok {
				return nil, fmt.Errorf("compound %q: linkage refers to unknown child %q", name, l.DstChild)
			}
			if err := src.BindTo(l.SrcPort, dst, l.DstPort); err != nil {
				return nil, fmt.Errorf("compound %q: %w", name, err)
			}
		}
	}
	return c, nil
}

// SetConfigMap installs the high-level-name -> child-leaf-set mapping used
// by SetHighLevel. It is a supplemented feature (SPEC_FULL.md §D.3): only
// alluded to by spec.md §4.5, not present in the original implementation.
func (c *Compound) SetConfigMap(m map[string][]ChildParam) {
	c.configMap = m
}

// Inputs returns the Compound's declared exterior input names.
func (c *Compound) Inputs() []string {
	names := make([]string, 0, len(c.inputs))
	for name := range c.inputs {
		names = append(names, name)
	}
	return names
}

// Outputs returns the Compound's declared exterior output names, in
// linkage declaration order.
func (c *Compound) Outputs() []string { return append([]string(nil), c.outputOrder...) }

// Input delivers f on the Compound's exterior input named name, forwarding
// directly into the linked child's input buffer with no intermediate
// queue.
func (c *Compound) Input(name string, f *frame.Frame) {
	buf, ok := c.inputs[name]
	if !ok {
		f.Release()
		return
	}
	buf.Input(f)
}

// InputEnd signals end-of-stream on the Compound's exterior input named
// name.
func (c *Compound) InputEnd(name string) {
	if buf, ok := c.inputs[name]; ok {
		buf.End()
	}
}

// Bind installs deliver/end as the dispatch for the Compound's exterior
// output named name, forwarding the call to whichever child output that
// exterior output was linked from.
func (c *Compound) Bind(name string, deliver func(*frame.Frame), end func()) error {
	out, ok := c.outputs[name]
	if !ok {
		return fmt.Errorf("compound %q: unknown output %q", c.Name, name)
	}
	return c.children[out.childName].Bind(out.childPort, deliver, end)
}

// BindTo wires the Compound's exterior output named name directly to
// peer's named input.
func (c *Compound) BindTo(name string, peer *component.Component, peerInput string) error {
	out, ok := c.outputs[name]
	if !ok {
		return fmt.Errorf("compound %q: unknown output %q", c.Name, name)
	}
	return c.children[out.childName].BindTo(out.childPort, peer, peerInput)
}

// IsTerminal reports whether every exterior output is still unbound,
// mirroring Component.IsTerminal for Compounds nested as children of
// another Compound or driven directly by the Runner.
func (c *Compound) IsTerminal() bool {
	for _, name := range c.outputOrder {
		out := c.outputs[name]
		if c.children[out.childName].OutputBound(out.childPort) {
			return false
		}
	}
	return true
}

// GetConfig gathers every child's configuration subtree into one
// GrandParent, indexed by child name.
func (c *Compound) GetConfig() *config.GrandParent {
	root := config.NewGrandParent()
	for _, name := range c.childOrder {
		root.Add(name, c.children[name].GetConfig())
	}
	return root
}

// SetConfig forwards each named subtree of next to the matching child.
// Unknown child names are ignored, matching the original's tolerant
// value.items() loop; a child present in next but absent from the
// Compound is silently skipped rather than treated as an error, since a
// partially-applicable config update is still useful to apply.
func (c *Compound) SetConfig(next *config.GrandParent) error {
	for _, name := range next.Names() {
		child, ok := c.children[name]
		if !ok {
			continue
		}
		sub, _ := next.Get(name)
		if err := child.SetConfig(sub); err != nil {
			return fmt.Errorf("compound %q: child %q: %w", c.Name, name, err)
		}
	}
	return nil
}

// SetHighLevel broadcasts value to every child.param path registered under
// name in the Compound's config_map, applying it atomically per child
// (each child's SetConfig either fully applies or is rejected).
func (c *Compound) SetHighLevel(name string, value any) error {
	targets, ok := c.configMap[name]
	if !ok {
		return fmt.Errorf("compound %q: no config_map entry for %q", c.Name, name)
	}
	byChild := make(map[string][]string)
	for _, t := range targets {
		byChild[t.Child] = append(byChild[t.Child], t.Leaf)
	}
	for childName, leaves := range byChild {
		child, ok := c.children[childName]
		if !ok {
			return fmt.Errorf("compound %q: config_map %q refers to unknown child %q", c.Name, name, childName)
		}
		next := child.GetConfig()
		for _, leafName := range leaves {
			node, ok := next.Get(leafName)
			if !ok {
				return fmt.Errorf("compound %q: config_map %q: child %q has no leaf %q", c.Name, name, childName, leafName)
			}
			if err := config.SetRawValue(node, value); err != nil {
				return fmt.Errorf("compound %q: config_map %q: %w", c.Name, name, err)
			}
		}
		if err := child.SetConfig(next); err != nil {
			return fmt.Errorf("compound %q: config_map %q: %w", c.Name, name, err)
		}
	}
	return nil
}

// Start starts every child.
func (c *Compound) Start() {
	for _, name := range c.childOrder {
		c.children[name].Start()
	}
}

// Stop stops every child.
func (c *Compound) Stop() {
	for _, name := range c.childOrder {
		c.children[name].Stop()
	}
}

// Join waits for children to finish. When endComponentsOnly is true (the
// original's join(end_comps=True)), only children that are currently
// terminal (IsTerminal) are waited on, the natural graph-completion
// condition for a subgraph with internal fan-out. It returns false if any
// waited-on child does not finish within timeout.
func (c *Compound) Join(timeout time.Duration, endComponentsOnly bool) bool {
	ok := true
	for _, name := range c.childOrder {
		child := c.children[name]
		if endComponentsOnly && !child.IsTerminal() {
			continue
		}
		if !child.Join(timeout) {
			ok = false
		}
	}
	return ok
}

// Children exposes the child map for a Runner that needs to enumerate a
// whole graph including nested Compounds.
func (c *Compound) Children() map[string]*component.Component {
	return c.children
}
