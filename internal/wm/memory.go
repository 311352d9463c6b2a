// Package wm implements working memory: an owned tree of named nodes built
// from the knowledge base's world schema, plus a flat "locals" map for
// paths that have no place in the schema (signified temporal facts,
// scratch values supplied by callers).
//
// Nodes hold no back-references, so the tree itself cannot contain a
// cycle. A leaf may be bound to an expression instead of holding a value;
// cycles through bindings are detected by the evaluator.
package wm

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tactline/internal/ir"
)

// Sentinel errors returned by Set.
var (
	ErrNotLeaf      = errors.New("reference names an object, not a value")
	ErrTypeMismatch = errors.New("value does not match property type")
)

// Slot is what a tree lookup yields: either a stored value or the
// expression the leaf is bound to. Binding is nil once a value is set.
type Slot struct {
	Value   ir.Value
	Binding ir.Expr
}

type node struct {
	prop     *ir.Property
	slot     Slot
	children map[string]*node
	order    []string
}

// Memory is the working memory of one solver.
// It is not safe for concurrent use.
type Memory struct {
	schema []ir.Property
	root   *node
	locals map[string]ir.Value
}

// New builds a memory tree from the world schema. Leaves start with their
// default: a literal default becomes the stored value, any other default
// expression becomes the leaf's binding.
func New(schema []ir.Property) *Memory {
	m := &Memory{schema: schema}
	m.Clear()
	return m
}

// Clear restores every leaf to its default and drops all locals.
func (m *Memory) Clear() {
	m.root = buildNode(nil, m.schema)
	m.locals = make(map[string]ir.Value)
}

func buildNode(prop *ir.Property, children []ir.Property) *node {
	n := &node{prop: prop}
	if prop != nil && prop.IsLeaf() {
		switch d := prop.Default.(type) {
		case nil:
		case *ir.Literal:
			n.slot.Value = d.Value
		default:
			n.slot.Binding = d
		}
		return n
	}
	n.children = make(map[string]*node, len(children))
	for i := range children {
		c := &children[i]
		key := normalize(c.Name)
		n.children[key] = buildNode(c, c.Children)
		n.order = append(n.order, key)
	}
	return n
}

func normalize(s string) string {
	return norm.NFC.String(s)
}

func (m *Memory) find(path string) *node {
	n := m.root
	for _, seg := range strings.Split(normalize(path), ".") {
		if n.children == nil {
			return nil
		}
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// Lookup resolves path against the tree only.
// It reports false when the path does not name a leaf.
func (m *Memory) Lookup(path string) (Slot, bool) {
	n := m.find(path)
	if n == nil || n.children != nil {
		return Slot{}, false
	}
	return n.slot, true
}

// Local resolves path against the locals map only.
func (m *Memory) Local(path string) (ir.Value, bool) {
	v, ok := m.locals[normalize(path)]
	return v, ok
}

// Get returns the stored value at path, trying the tree first and the
// locals second. Bindings are not evaluated.
func (m *Memory) Get(path string) (ir.Value, bool) {
	if s, ok := m.Lookup(path); ok {
		return s.Value, true
	}
	return m.Local(path)
}

// Set stores v at path. A path inside the tree replaces the leaf's value
// and drops its binding; any other path is written to locals.
func (m *Memory) Set(path string, v ir.Value) error {
	n := m.find(path)
	if n == nil {
		m.locals[normalize(path)] = v
		return nil
	}
	if n.children != nil {
		return fmt.Errorf("set %s: %w", path, ErrNotLeaf)
	}
	if !Accepts(n.prop.Type, v.Content) {
		return fmt.Errorf("set %s: %w: %s cannot hold %T", path, ErrTypeMismatch, n.prop.Type, v.Content)
	}
	n.slot = Slot{Value: v}
	return nil
}

// DeleteLocals removes every local whose key starts with prefix.
func (m *Memory) DeleteLocals(prefix string) {
	prefix = normalize(prefix)
	for k := range m.locals {
		if strings.HasPrefix(k, prefix) {
			delete(m.locals, k)
		}
	}
}

// Accepts reports whether content may be stored in a leaf of the given type.
// Unknown content is accepted by every type.
func Accepts(typ string, content any) bool {
	if content == nil {
		return true
	}
	switch typ {
	case "number":
		return ir.IsNumber(content)
	case "string":
		_, ok := content.(string)
		return ok
	case "bool":
		_, ok := content.(bool)
		return ok
	default:
		return true
	}
}

// Paths lists every leaf path of the tree in schema order.
func (m *Memory) Paths() []string {
	var out []string
	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		for _, key := range n.order {
			child := n.children[key]
			p := key
			if prefix != "" {
				p = prefix + "." + key
			}
			if child.children == nil {
				out = append(out, p)
				continue
			}
			walk(child, p)
		}
	}
	walk(m.root, "")
	return out
}

// Locals returns a copy of the locals map.
func (m *Memory) Locals() map[string]ir.Value {
	out := make(map[string]ir.Value, len(m.locals))
	for k, v := range m.locals {
		out[k] = v
	}
	return out
}

// Snapshot flattens the tree and the locals into full dotted paths mapped
// to stored content. Tree leaves win over locals with the same key; leaves
// that only carry a binding report unknown.
func (m *Memory) Snapshot() map[string]any {
	out := make(map[string]any, len(m.locals))
	for k, v := range m.locals {
		out[k] = v.Content
	}
	for _, p := range m.Paths() {
		s, _ := m.Lookup(p)
		out[p] = s.Value.Content
	}
	return out
}

// Clone returns a deep copy. Schema and expressions are shared; they are
// immutable.
func (m *Memory) Clone() *Memory {
	return &Memory{schema: m.schema, root: cloneNode(m.root), locals: m.Locals()}
}

func cloneNode(n *node) *node {
	c := &node{prop: n.prop, slot: n.slot, order: n.order}
	if n.children != nil {
		c.children = make(map[string]*node, len(n.children))
		for k, child := range n.children {
			c.children[k] = cloneNode(child)
		}
	}
	return c
}
