// Package radix implements a compressed prefix tree over hexadecimal keys.
//
// Every node holds a label, the run of symbols consumed between its parent and
// itself, and up to Base children addressed by the first symbol of their own
// label. Nodes live in a single arena slice and refer to each other by NodeID.
// A split hoists the shared prefix into a new gateway node above the node
// being split, so the subtree below it is re-parented without being copied.
//
// The tree is append-only: keys are never removed, nodes are only added or
// reshaped. It is not safe for concurrent use.
package radix

import (
	"errors"
	"fmt"
	"iter"
)

// Base is the number of branches a node can have, one per hexadecimal symbol.
const Base = 16

var (
	// ErrEmptyKey is returned when inserting or looking up an empty key.
	ErrEmptyKey = errors.New("radix: empty key")
	// ErrInvalidSymbol is returned for keys containing a symbol outside [0-9A-Fa-f].
	ErrInvalidSymbol = errors.New("radix: symbol outside the hexadecimal alphabet")
)

// NodeID addresses a node in a Tree. A NodeID stays valid for the lifetime of
// the tree: splits never move an inserted key to another node.
type NodeID uint32

type node[V any] struct {
	label string
	// children holds child id+1 per branch, zero when the branch is empty.
	children [Base]uint32
	terminal bool
	hasValue bool
	value    V
}

// Tree is a compressed trie mapping hexadecimal keys to values of type V.
// The zero value is an empty tree ready to use.
type Tree[V any] struct {
	nodes []node[V]
	root  NodeID
	keys  int
}

// New returns an empty tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{}
}

// SymbolIndex maps a hexadecimal symbol to its branch index in [0, Base).
// Digits map to their numeric value, letters of either case to 10..15.
// It returns -1 for anything else.
func SymbolIndex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}

// normalize validates key and folds lowercase letters to uppercase. Keys that
// are already uppercase are returned without copying.
func normalize(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	lower := false
	for i := 0; i < len(key); i++ {
		c := key[i]
		if SymbolIndex(c) < 0 {
			return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidSymbol, c, i)
		}
		if c >= 'a' {
			lower = true
		}
	}
	if !lower {
		return key, nil
	}
	b := []byte(key)
	for i, c := range b {
		if c >= 'a' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b), nil
}

// commonPrefixLen returns the length of the longest common prefix of a and b.
func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Insert returns the terminal node for key, creating it if needed. existed
// reports whether key had already been inserted before this call; when it is
// true the tree is left untouched.
//
// The key is validated before any node is touched, so an error never leaves a
// split half-applied.
func (t *Tree[V]) Insert(key string) (id NodeID, existed bool, err error) {
	key, err = normalize(key)
	if err != nil {
		return 0, false, err
	}

	if len(t.nodes) == 0 {
		t.root = t.alloc(key)
		return t.markTerminal(t.root)
	}

	parent, branch := NodeID(0), -1
	id = t.root
	for {
		label := t.nodes[id].label
		p := commonPrefixLen(label, key)

		// The shared prefix is hoisted into a new gateway above id; id keeps its
		// children, its value and the rest of its label.
		if p < len(label) {
			id = t.split(id, p, parent, branch)
		}

		rest := key[p:]
		if rest == "" {
			return t.markTerminal(id)
		}

		next := SymbolIndex(rest[0])
		child, ok := t.child(id, next)
		if !ok {
			child = t.alloc(rest)
			t.nodes[id].children[next] = uint32(child) + 1
			return t.markTerminal(child)
		}
		parent, branch = id, next
		id, key = child, rest
	}
}

// split cuts the label of node id after its first at symbols. A new gateway
// node carrying the first part takes id's place under parent (or as the root
// when branch is -1), and id is re-attached below it with the remainder.
// It returns the gateway.
func (t *Tree[V]) split(id NodeID, at int, parent NodeID, branch int) NodeID {
	label := t.nodes[id].label
	gw := t.alloc(label[:at])
	t.nodes[gw].children[SymbolIndex(label[at])] = uint32(id) + 1
	t.nodes[id].label = label[at:]

	if branch < 0 {
		t.root = gw
	} else {
		t.nodes[parent].children[branch] = uint32(gw) + 1
	}
	return gw
}

func (t *Tree[V]) markTerminal(id NodeID) (NodeID, bool, error) {
	n := &t.nodes[id]
	if n.terminal {
		return id, true, nil
	}
	n.terminal = true
	t.keys++
	return id, false, nil
}

// alloc appends a childless node. It may grow the arena, so callers must not
// hold *node pointers across it.
func (t *Tree[V]) alloc(label string) NodeID {
	t.nodes = append(t.nodes, node[V]{label: label})
	return NodeID(len(t.nodes) - 1)
}

// Lookup returns the terminal node for key without modifying the tree.
func (t *Tree[V]) Lookup(key string) (NodeID, bool) {
	key, err := normalize(key)
	if err != nil || len(t.nodes) == 0 {
		return 0, false
	}
	id := t.root
	for {
		label := t.nodes[id].label
		if len(key) < len(label) || key[:len(label)] != label {
			return 0, false
		}
		key = key[len(label):]
		if key == "" {
			return id, t.nodes[id].terminal
		}
		child, ok := t.child(id, SymbolIndex(key[0]))
		if !ok {
			return 0, false
		}
		id = child
	}
}

// Len returns the number of distinct keys in the tree.
func (t *Tree[V]) Len() int { return t.keys }

// NodeCount returns the number of nodes, gateways included.
func (t *Tree[V]) NodeCount() int { return len(t.nodes) }

// Root returns the root node, or false when the tree is empty.
func (t *Tree[V]) Root() (NodeID, bool) {
	return t.root, len(t.nodes) > 0
}

// Label returns the edge label of node id.
func (t *Tree[V]) Label(id NodeID) string { return t.nodes[id].label }

// Child returns the child of id at the branch selected by symbol.
func (t *Tree[V]) Child(id NodeID, symbol byte) (NodeID, bool) {
	i := SymbolIndex(symbol)
	if i < 0 {
		return 0, false
	}
	return t.child(id, i)
}

func (t *Tree[V]) child(id NodeID, branch int) (NodeID, bool) {
	c := t.nodes[id].children[branch]
	return NodeID(c - 1), c != 0
}

// Children yields the branch index and id of every child of id in branch order.
func (t *Tree[V]) Children(id NodeID) iter.Seq2[int, NodeID] {
	return func(yield func(int, NodeID) bool) {
		for i, c := range t.nodes[id].children {
			if c == 0 {
				continue
			}
			if !yield(i, NodeID(c-1)) {
				return
			}
		}
	}
}

// IsTerminal reports whether some inserted key ends at id.
func (t *Tree[V]) IsTerminal(id NodeID) bool { return t.nodes[id].terminal }

// Value returns the value associated with id, if one was set.
func (t *Tree[V]) Value(id NodeID) (V, bool) {
	n := &t.nodes[id]
	return n.value, n.hasValue
}

// Set associates v with the terminal node id.
func (t *Tree[V]) Set(id NodeID, v V) {
	n := &t.nodes[id]
	n.value = v
	n.hasValue = true
}

// All yields every inserted key with its terminal node, in ascending key order.
func (t *Tree[V]) All() iter.Seq2[string, NodeID] {
	return func(yield func(string, NodeID) bool) {
		t.walk(func(prefix string, id NodeID, _, _ int) bool {
			if t.nodes[id].terminal {
				return yield(prefix, id)
			}
			return true
		})
	}
}

type frame struct {
	id     NodeID
	branch int
	depth  int
	prefix string
}

// walk visits nodes depth-first in branch order with an explicit stack. visit
// receives the full key up to and including the node's label.
func (t *Tree[V]) walk(visit func(prefix string, id NodeID, branch, depth int) bool) {
	if len(t.nodes) == 0 {
		return
	}
	stack := []frame{{id: t.root, prefix: t.nodes[t.root].label}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(f.prefix, f.id, f.branch, f.depth) {
			return
		}
		children := &t.nodes[f.id].children
		for i := Base - 1; i >= 0; i-- {
			if c := children[i]; c != 0 {
				id := NodeID(c - 1)
				stack = append(stack, frame{id: id, branch: i, depth: f.depth + 1, prefix: f.prefix + t.nodes[id].label})
			}
		}
	}
}
