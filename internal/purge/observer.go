package purge

import "asset-sweep/internal/catalog"

// Observer receives deletion progress events, so the engine stays
// reusable by a terminal progress display, a structured logger, or a
// test harness. Implementations must be safe for concurrent use;
// workers call them directly.
type Observer interface {
	RunStarted(root string, total int)
	NodeDeleted(n catalog.Node, attempts int)
	NodeSkipped(n catalog.Node, reason string)
	NodeFailed(n catalog.Node, attempts int, err error)
	RunFinished(s Summary)
}

// NopObserver discards all events. Embed it to implement only the
// callbacks a consumer cares about.
type NopObserver struct{}

func (NopObserver) RunStarted(string, int)              {}
func (NopObserver) NodeDeleted(catalog.Node, int)       {}
func (NopObserver) NodeSkipped(catalog.Node, string)    {}
func (NopObserver) NodeFailed(catalog.Node, int, error) {}
func (NopObserver) RunFinished(Summary)                 {}
