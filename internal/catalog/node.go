package catalog

import "strings"

// Kind classifies a catalog entry
type Kind int

const (
	KindUnknown Kind = iota
	KindContainer
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// KindFromType maps a remote asset type string to a Kind.
// Folders and collections can hold children; everything else is a leaf.
func KindFromType(t string) Kind {
	switch strings.ToLower(t) {
	case "":
		return KindUnknown
	case "folder", "image_collection", "collection", "container":
		return KindContainer
	default:
		return KindLeaf
	}
}

// Node is one entry in the remote catalog. Immutable once discovered.
type Node struct {
	Path string
	Kind Kind
}

// Depth is the number of path separators in the node path.
// Used as the coarse deletion-ordering heuristic: deeper nodes
// are deleted before their ancestors.
func (n Node) Depth() int {
	return strings.Count(n.Path, "/")
}
