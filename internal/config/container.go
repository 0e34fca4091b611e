package config

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Parent is an ordered map of named child nodes: a component's own
// configuration subtree. Order is insertion order and is preserved by
// Clone and Names, so AuditString renders deterministically.
type Parent struct {
	order    []string
	children map[string]Node
}

// NewParent returns an empty Parent.
func NewParent() *Parent {
	return &Parent{children: make(map[string]Node)}
}

// Add installs or replaces the child node named name.
func (p *Parent) Add(name string, n Node) {
	if _, exists := p.children[name]; !exists {
		p.order = append(p.order, name)
	}
	p.children[name] = n
}

// Get returns the child named name, if present.
func (p *Parent) Get(name string) (Node, bool) {
	n, ok := p.children[name]
	return n, ok
}

// Names returns the child names in insertion order.
func (p *Parent) Names() []string {
	return append([]string(nil), p.order...)
}

// Clone returns a deep copy: every child is itself cloned.
func (p *Parent) Clone() Node {
	c := NewParent()
	for _, name := range p.order {
		c.Add(name, p.children[name].Clone())
	}
	return c
}

// Validate validates every child, aggregating all failures rather than
// stopping at the first, so a caller sees the whole rejected tree at once.
func (p *Parent) Validate() error {
	var err error
	for _, name := range p.order {
		if verr := p.children[name].Validate(); verr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", name, verr))
		}
	}
	return err
}

// AuditString renders this subtree's leaf values as a single audit-trail
// line indented by four spaces, e.g. "    width: 640, height: 480\n", or
// "" when there are no leaves, matching the text a component
// passes as SetAudit's WithConfig option.
func (p *Parent) AuditString() string {
	parts := make([]string, 0, len(p.order))
	for _, name := range p.order {
		if v, ok := p.children[name].(valuer); ok {
			parts = append(parts, fmt.Sprintf("%s: %v", name, v.rawValue()))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "    " + strings.Join(parts, ", ") + "\n"
}

// GrandParent is an ordered map of named Parent subtrees, one per child
// component in a graph (or one per child of a Compound).
type GrandParent struct {
	order    []string
	children map[string]*Parent
}

// NewGrandParent returns an empty GrandParent.
func NewGrandParent() *GrandParent {
	return &GrandParent{children: make(map[string]*Parent)}
}

// Add installs or replaces the Parent subtree named name.
func (g *GrandParent) Add(name string, p *Parent) {
	if _, exists := g.children[name]; !exists {
		g.order = append(g.order, name)
	}
	g.children[name] = p
}

// Get returns the subtree named name, if present.
func (g *GrandParent) Get(name string) (*Parent, bool) {
	p, ok := g.children[name]
	return p, ok
}

// Names returns the child names in insertion order.
func (g *GrandParent) Names() []string {
	return append([]string(nil), g.order...)
}

// Clone returns a deep copy of the whole tree.
func (g *GrandParent) Clone() *GrandParent {
	c := NewGrandParent()
	for _, name := range g.order {
		c.Add(name, g.children[name].Clone().(*Parent))
	}
	return c
}

// Validate validates every subtree, aggregating all failures.
func (g *GrandParent) Validate() error {
	var err error
	for _, name := range g.order {
		if verr := g.children[name].Validate(); verr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", name, verr))
		}
	}
	return err
}
