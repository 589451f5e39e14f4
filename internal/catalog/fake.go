package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeStore implements TransferStore in memory for testing. It records
// every delete call and enforces the real catalog's rule that a container
// with children cannot be deleted. Individual calls can also be scripted
// to fail, so tests can drive the retry policy without a remote.
type FakeStore struct {
	mu    sync.Mutex
	nodes map[string]Kind

	// Deleted holds successfully deleted paths in completion order.
	Deleted []string
	// DeleteCalls counts DeleteNode invocations per path.
	DeleteCalls map[string]int

	// Scripted failures, consumed one per call. A nil entry in a
	// DeleteErrs slice means "succeed on this call".
	DeleteErrs map[string][]error
	GetErrs    map[string]error
	ListErrs   map[string]error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		nodes:       make(map[string]Kind),
		DeleteCalls: make(map[string]int),
		DeleteErrs:  make(map[string][]error),
		GetErrs:     make(map[string]error),
		ListErrs:    make(map[string]error),
	}
}

// Add inserts a node without touching ancestors.
func (s *FakeStore) Add(path string, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[path] = kind
}

// AddTree inserts a whole path→kind map at once.
func (s *FakeStore) AddTree(tree map[string]Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, k := range tree {
		s.nodes[p] = k
	}
}

// Has reports whether a path still exists in the store.
func (s *FakeStore) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[path]
	return ok
}

// Len returns the number of nodes currently in the store.
func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *FakeStore) GetNode(_ context.Context, path string) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.GetErrs[path]; err != nil {
		return Node{}, err
	}
	kind, ok := s.nodes[path]
	if !ok {
		return Node{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return Node{Path: path, Kind: kind}, nil
}

func (s *FakeStore) ListChildren(_ context.Context, parent string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ListErrs[parent]; err != nil {
		return nil, err
	}
	var children []Node
	prefix := parent + "/"
	for p, k := range s.nodes {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") {
			children = append(children, Node{Path: p, Kind: k})
		}
	}
	return children, nil
}

func (s *FakeStore) DeleteNode(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls[path]++

	if errs := s.DeleteErrs[path]; len(errs) > 0 {
		err := errs[0]
		s.DeleteErrs[path] = errs[1:]
		if err != nil {
			return err
		}
	}

	if _, ok := s.nodes[path]; !ok {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	if s.hasChildrenLocked(path) {
		return fmt.Errorf("delete %s: %w", path, ErrNotEmpty)
	}
	delete(s.nodes, path)
	s.Deleted = append(s.Deleted, path)
	return nil
}

func (s *FakeStore) CreateContainer(_ context.Context, path string, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[path]; ok {
		return fmt.Errorf("create %s: %w", path, ErrAlreadyExists)
	}
	if kind == KindUnknown {
		kind = KindContainer
	}
	s.nodes[path] = kind
	return nil
}

func (s *FakeStore) CopyNode(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.nodes[src]
	if !ok {
		return fmt.Errorf("copy %s: %w", src, ErrNotFound)
	}
	if _, ok := s.nodes[dst]; ok {
		return fmt.Errorf("copy to %s: %w", dst, ErrAlreadyExists)
	}
	s.nodes[dst] = kind
	return nil
}

func (s *FakeStore) RenameNode(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.nodes[src]
	if !ok {
		return fmt.Errorf("rename %s: %w", src, ErrNotFound)
	}
	if _, ok := s.nodes[dst]; ok {
		return fmt.Errorf("rename to %s: %w", dst, ErrAlreadyExists)
	}
	if kind == KindContainer && s.hasChildrenLocked(src) {
		return fmt.Errorf("rename %s: %w", src, ErrNotEmpty)
	}
	delete(s.nodes, src)
	s.nodes[dst] = kind
	return nil
}

func (s *FakeStore) hasChildrenLocked(path string) bool {
	prefix := path + "/"
	for p := range s.nodes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
