package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// Binding remembers how one configuration leaf was projected onto a flag,
// so Apply can write the parsed value back after pflag.FlagSet.Parse runs.
type Binding struct {
	path string
	kind string
	flag *pflag.Flag
}

// RegisterFlags walks every Parent subtree of root and every leaf within it,
// registering one flag per leaf named "<child>.<leaf>" on fs, typed
// according to the leaf's kind. It returns the bindings Apply needs to copy
// parsed values back into a tree.
func RegisterFlags(fs *pflag.FlagSet, root *GrandParent) []Binding {
	var bindings []Binding
	for _, childName := range root.Names() {
		parent, _ := root.Get(childName)
		for _, leafName := range parent.Names() {
			node, _ := parent.Get(leafName)
			path := childName + "." + leafName
			if b, ok := registerLeaf(fs, path, node); ok {
				bindings = append(bindings, b)
			}
		}
	}
	return bindings
}

func registerLeaf(fs *pflag.FlagSet, path string, node Node) (Binding, bool) {
	switch n := node.(type) {
	case *Bool:
		fs.Bool(path, n.Value, path)
		return Binding{path: path, kind: "bool", flag: fs.Lookup(path)}, true
	case *Int:
		fs.Int64(path, n.Value, fmt.Sprintf("%s (range [%d, %d])", path, n.Min, n.Max))
		return Binding{path: path, kind: "int", flag: fs.Lookup(path)}, true
	case *Float:
		fs.Float64(path, n.Value, fmt.Sprintf("%s (range [%g, %g])", path, n.Min, n.Max))
		return Binding{path: path, kind: "float", flag: fs.Lookup(path)}, true
	case *Str:
		fs.String(path, n.Value, path)
		return Binding{path: path, kind: "str", flag: fs.Lookup(path)}, true
	case *Path:
		fs.String(path, n.Value, path+" (filesystem path)")
		return Binding{path: path, kind: "path", flag: fs.Lookup(path)}, true
	case *Enum:
		fs.String(path, n.Value, fmt.Sprintf("%s (one of %v)", path, n.Choices))
		return Binding{path: path, kind: "enum", flag: fs.Lookup(path)}, true
	case *IntEnum:
		fs.Int64(path, n.Value, fmt.Sprintf("%s (one of %v)", path, n.Choices))
		return Binding{path: path, kind: "intenum", flag: fs.Lookup(path)}, true
	default:
		// Parent/GrandParent nested directly under a Parent is not part of
		// this tree's shape; nothing to register.
		return Binding{}, false
	}
}

// Apply writes every bound flag's parsed value back into a fresh deep copy
// of root, validating each leaf before committing any of them. On the first
// validation failure it returns that error and leaves root untouched,
// matching the Component.SetConfig atomicity contract: either the whole new
// tree applies or none of it does.
func Apply(bindings []Binding, root *GrandParent) (*GrandParent, error) {
	next := root.Clone()
	for _, b := range bindings {
		if !b.flag.Changed {
			continue
		}
		childName, leafName, err := splitPath(b.path)
		if err != nil {
			return nil, err
		}
		parent, ok := next.Get(childName)
		if !ok {
			return nil, fmt.Errorf("config: unknown child %q for flag %q", childName, b.path)
		}
		node, ok := parent.Get(leafName)
		if !ok {
			return nil, fmt.Errorf("config: unknown leaf %q for flag %q", leafName, b.path)
		}
		if err := applyValue(node, b); err != nil {
			return nil, err
		}
		if err := node.Validate(); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func applyValue(node Node, b Binding) error {
	switch n := node.(type) {
	case *Bool:
		raw, err := strconv.ParseBool(b.flag.Value.String())
		if err != nil {
			return err
		}
		n.Value = raw
	case *Int:
		raw, err := strconv.ParseInt(b.flag.Value.String(), 10, 64)
		if err != nil {
			return err
		}
		n.Value = raw
	case *Float:
		raw, err := strconv.ParseFloat(b.flag.Value.String(), 64)
		if err != nil {
			return err
		}
		n.Value = raw
	case *Str:
		n.Value = b.flag.Value.String()
	case *Path:
		n.Value = b.flag.Value.String()
	case *Enum:
		n.Value = b.flag.Value.String()
	case *IntEnum:
		raw, err := strconv.ParseInt(b.flag.Value.String(), 10, 64)
		if err != nil {
			return err
		}
		n.Value = raw
	default:
		return fmt.Errorf("config: unsupported leaf kind for flag %q", b.path)
	}
	return nil
}

func splitPath(path string) (child, leaf string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("config: malformed flag path %q", path)
}
