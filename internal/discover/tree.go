package discover

import (
	"sync"

	"asset-sweep/internal/catalog"
)

// Tree is the de-duplicated set of nodes found under a root. It is a
// snapshot: catalog mutations concurrent with discovery are invisible.
// Safe for concurrent append during the discovery fan-out.
type Tree struct {
	mu    sync.Mutex
	nodes map[string]catalog.Node
	order []string
}

func newTree() *Tree {
	return &Tree{nodes: make(map[string]catalog.Node)}
}

// add inserts a node, returning false if the path was already present.
func (t *Tree) add(n catalog.Node) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[n.Path]; ok {
		return false
	}
	t.nodes[n.Path] = n
	t.order = append(t.order, n.Path)
	return true
}

// Len returns the number of discovered nodes.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Contains reports whether a path was discovered.
func (t *Tree) Contains(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[path]
	return ok
}

// Nodes returns the discovered nodes in discovery order. The slice is a
// copy; depth sorting by the scheduler leaves the tree untouched.
func (t *Tree) Nodes() []catalog.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]catalog.Node, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.nodes[p])
	}
	return out
}
