package catalog

import "context"

// Store is the remote catalog client contract. Every call is a blocking
// network operation and honors context cancellation.
type Store interface {
	// GetNode fetches a single node. Returns ErrNotFound (wrapped) if the
	// path does not exist.
	GetNode(ctx context.Context, path string) (Node, error)

	// ListChildren returns the direct children of a container. An empty
	// slice means the container holds nothing.
	ListChildren(ctx context.Context, parent string) ([]Node, error)

	// DeleteNode deletes a single node. Containers must be empty;
	// deleting a non-empty container returns ErrNotEmpty (wrapped).
	DeleteNode(ctx context.Context, path string) error
}

// TransferStore extends Store with the operations subtree copy and move
// need. The REST client and the in-memory fake implement both.
type TransferStore interface {
	Store

	// CreateContainer creates an empty folder or collection at path.
	// Returns ErrAlreadyExists (wrapped) if something is already there.
	CreateContainer(ctx context.Context, path string, kind Kind) error

	// CopyNode copies a leaf asset from src to dst.
	CopyNode(ctx context.Context, src, dst string) error

	// RenameNode moves a node from src to dst.
	RenameNode(ctx context.Context, src, dst string) error
}
