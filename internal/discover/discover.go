package discover

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"asset-sweep/internal/catalog"
)

// Store is the slice of the catalog client discovery needs.
type Store interface {
	GetNode(ctx context.Context, path string) (catalog.Node, error)
	ListChildren(ctx context.Context, parent string) ([]catalog.Node, error)
}

// Observer receives discovery progress events. Implementations must be
// safe for concurrent use; discovery workers call them directly.
type Observer interface {
	NodeDiscovered(n catalog.Node)
	DiscoveryError(path string, err error)
}

type nopObserver struct{}

func (nopObserver) NodeDiscovered(catalog.Node)  {}
func (nopObserver) DiscoveryError(string, error) {}

// Discover enumerates every node reachable from root. A root that does
// not exist yields an empty tree and no error; any other root failure is
// fatal. Errors listing an individual container are reported to the
// observer and that subtree is skipped, siblings unaffected.
//
// Listing fans out over a fixed pool of workers fed by an explicit work
// queue, so resource usage stays bounded regardless of tree shape.
func Discover(ctx context.Context, store Store, root string, workers int, obs Observer) (*Tree, error) {
	if workers < 1 {
		workers = 1
	}
	if obs == nil {
		obs = nopObserver{}
	}

	tree := newTree()

	rootNode, err := store.GetNode(ctx, root)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tree, nil
		}
		return nil, fmt.Errorf("get root %s: %w", root, err)
	}

	tree.add(rootNode)
	obs.NodeDiscovered(rootNode)
	if rootNode.Kind != catalog.KindContainer {
		return tree, nil
	}

	q := newQueue()
	q.push(rootNode.Path)
	unregister := context.AfterFunc(ctx, q.stop)
	defer unregister()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				parent, ok := q.pop()
				if !ok {
					return
				}
				expand(ctx, store, parent, tree, q, obs)
				q.done()
			}
		}()
	}
	wg.Wait()

	return tree, nil
}

// expand lists one container and feeds newly seen children back into the
// queue. A listing failure drops the subtree, never the whole discovery.
func expand(ctx context.Context, store Store, parent string, tree *Tree, q *queue, obs Observer) {
	children, err := store.ListChildren(ctx, parent)
	if err != nil {
		obs.DiscoveryError(parent, err)
		return
	}
	for _, child := range children {
		if ctx.Err() != nil {
			return
		}
		if !tree.add(child) {
			continue
		}
		obs.NodeDiscovered(child)
		if child.Kind == catalog.KindContainer {
			q.push(child.Path)
		}
	}
}
