package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"asset-sweep/internal/catalog"
	"asset-sweep/internal/discover"
	"asset-sweep/internal/history"
	"asset-sweep/internal/interrupt"
	"asset-sweep/internal/metrics"
)

// Observer receives transfer progress events. Implementations must be
// safe for concurrent use.
type Observer interface {
	NodeTransferred(src, dst string)
	NodeSkipped(src, reason string)
	TransferError(src string, err error)
}

type nopObserver struct{}

func (nopObserver) NodeTransferred(string, string) {}
func (nopObserver) NodeSkipped(string, string)     {}
func (nopObserver) TransferError(string, error)    {}

// Summary is the caller-visible result of a copy or move.
type Summary struct {
	TotalDiscovered int
	Transferred     int
	Skipped         int
	Failed          int
	NotProcessed    int
	Cancelled       bool
}

// Copier copies or moves whole subtrees between catalog paths. It builds
// the destination skeleton shallowest-first so every leaf transfer finds
// its parent in place, then fans leaves out over a bounded worker pool.
// Re-runs are idempotent: nodes whose destination already exists are
// skipped.
type Copier struct {
	RunID string

	store     catalog.TransferStore
	token     *interrupt.Token
	logger    *log.Logger
	obs       Observer
	historyDB *history.DB
	workers   int
}

// NewCopier creates a copier. token and logger may be nil.
func NewCopier(store catalog.TransferStore, token *interrupt.Token, logger *log.Logger) *Copier {
	if logger == nil {
		logger = log.Default()
	}
	return &Copier{
		RunID:   uuid.NewString(),
		store:   store,
		token:   token,
		logger:  logger,
		obs:     nopObserver{},
		workers: 10,
	}
}

// SetObserver installs the progress observer.
func (c *Copier) SetObserver(obs Observer) {
	if obs != nil {
		c.obs = obs
	}
}

// SetHistory installs the transfer-history database.
func (c *Copier) SetHistory(db *history.DB) { c.historyDB = db }

// SetWorkers sizes the leaf-transfer worker pool.
func (c *Copier) SetWorkers(n int) {
	if n > 0 {
		c.workers = n
	}
}

// Copy replicates the subtree at src under dst. The source is left
// untouched.
func (c *Copier) Copy(ctx context.Context, src, dst string) (*Summary, error) {
	return c.run(ctx, src, dst, false)
}

// Move relocates the subtree at src to dst: destination containers are
// created, every node is renamed across, then the emptied source
// containers are deleted deepest-first.
func (c *Copier) Move(ctx context.Context, src, dst string) (*Summary, error) {
	return c.run(ctx, src, dst, true)
}

func (c *Copier) run(ctx context.Context, src, dst string, move bool) (*Summary, error) {
	src = strings.TrimRight(src, "/")
	dst = strings.TrimRight(dst, "/")
	if src == "" || dst == "" {
		return nil, errors.New("source and destination are required")
	}
	if src == dst || strings.HasPrefix(dst, src+"/") {
		return nil, fmt.Errorf("destination %s overlaps source %s", dst, src)
	}
	start := time.Now()

	tree, err := discover.Discover(ctx, c.store, src, c.workers, nil)
	if err != nil {
		return nil, err
	}

	nodes := tree.Nodes()
	summary := &Summary{TotalDiscovered: len(nodes)}
	if len(nodes) == 0 {
		c.logger.Printf("no assets found under %s", src)
		return summary, nil
	}
	c.beginHistory(src, move, start)

	// Shallowest first: parents must exist before their children land.
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Depth() < nodes[j].Depth()
	})

	var containers, leaves []catalog.Node
	for _, n := range nodes {
		if n.Kind == catalog.KindContainer {
			containers = append(containers, n)
		} else {
			leaves = append(leaves, n)
		}
	}

	c.createSkeleton(ctx, containers, src, dst, move, summary)
	c.transferLeaves(ctx, leaves, src, dst, move, summary)

	if move && !summary.Cancelled && summary.Failed == 0 {
		c.removeSources(ctx, containers)
	}

	summary.NotProcessed = summary.TotalDiscovered - summary.Transferred - summary.Skipped - summary.Failed
	c.finishHistory(summary)
	c.logger.Printf("transfer complete: total=%d transferred=%d skipped=%d failed=%d cancelled=%v",
		summary.TotalDiscovered, summary.Transferred, summary.Skipped, summary.Failed, summary.Cancelled)
	return summary, nil
}

func transferAction(move bool) string {
	if move {
		return history.ActionMove
	}
	return history.ActionCopy
}

func (c *Copier) beginHistory(src string, move bool, start time.Time) {
	if c.historyDB == nil {
		return
	}
	op := "copy"
	if move {
		op = "move"
	}
	if err := c.historyDB.BeginRun(c.RunID, src, op, start); err != nil {
		c.logger.Printf("failed to record run start: %v", err)
	}
}

func (c *Copier) finishHistory(summary *Summary) {
	if c.historyDB == nil {
		return
	}
	err := c.historyDB.FinishRun(c.RunID, time.Now(), history.RunCounts{
		TotalDiscovered: summary.TotalDiscovered,
		Succeeded:       summary.Transferred,
		Failed:          summary.Failed,
		Skipped:         summary.Skipped,
		NotProcessed:    summary.NotProcessed,
		Cancelled:       summary.Cancelled,
	})
	if err != nil {
		c.logger.Printf("failed to record run completion: %v", err)
	}
}

func (c *Copier) recordEvent(action string, n catalog.Node, errMsg string) {
	if c.historyDB == nil {
		return
	}
	if err := c.historyDB.RecordEvent(c.RunID, action, n, 1, errMsg); err != nil {
		c.logger.Printf("failed to record history event for %s: %v", n.Path, err)
	}
}

// createSkeleton creates destination containers sequentially in
// ascending depth order.
func (c *Copier) createSkeleton(ctx context.Context, containers []catalog.Node, src, dst string, move bool, summary *Summary) {
	for _, n := range containers {
		if c.stopRequested(ctx) {
			summary.Cancelled = true
			return
		}
		target := rewrite(n.Path, src, dst)
		if _, err := c.store.GetNode(ctx, target); err == nil {
			summary.Skipped++
			c.recordEvent(history.ActionSkip, n, "destination container exists")
			c.obs.NodeSkipped(n.Path, "destination container exists")
			continue
		}
		if err := c.store.CreateContainer(ctx, target, n.Kind); err != nil {
			if errors.Is(err, catalog.ErrAlreadyExists) {
				summary.Skipped++
				c.recordEvent(history.ActionSkip, n, "destination container exists")
				c.obs.NodeSkipped(n.Path, "destination container exists")
				continue
			}
			summary.Failed++
			c.logger.Printf("error creating container %s: %v", target, err)
			c.recordEvent(history.ActionError, n, err.Error())
			c.obs.TransferError(n.Path, err)
			continue
		}
		summary.Transferred++
		c.recordEvent(transferAction(move), n, "")
		c.obs.NodeTransferred(n.Path, target)
	}
}

// transferLeaves copies or renames leaves over a bounded worker pool.
func (c *Copier) transferLeaves(ctx context.Context, leaves []catalog.Node, src, dst string, move bool, summary *Summary) {
	if summary.Cancelled {
		return
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan catalog.Node)
	)

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				target := rewrite(n.Path, src, dst)
				transferred, skipped, err := c.transferOne(ctx, n, target, move)
				mu.Lock()
				switch {
				case err != nil:
					summary.Failed++
				case skipped:
					summary.Skipped++
				case transferred:
					summary.Transferred++
				}
				mu.Unlock()
			}
		}()
	}

	for _, n := range leaves {
		if c.stopRequested(ctx) {
			summary.Cancelled = true
			break
		}
		jobs <- n
	}
	close(jobs)
	wg.Wait()
}

func (c *Copier) transferOne(ctx context.Context, n catalog.Node, target string, move bool) (transferred, skipped bool, err error) {
	if _, gerr := c.store.GetNode(ctx, target); gerr == nil {
		c.recordEvent(history.ActionSkip, n, "destination exists")
		c.obs.NodeSkipped(n.Path, "destination exists")
		return false, true, nil
	}

	if move {
		err = c.store.RenameNode(ctx, n.Path, target)
	} else {
		err = c.store.CopyNode(ctx, n.Path, target)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrAlreadyExists) {
			c.recordEvent(history.ActionSkip, n, "destination exists")
			c.obs.NodeSkipped(n.Path, "destination exists")
			return false, true, nil
		}
		c.logger.Printf("error transferring %s to %s: %v", n.Path, target, err)
		c.recordEvent(history.ActionError, n, err.Error())
		c.obs.TransferError(n.Path, err)
		return false, false, err
	}

	if move {
		metrics.AssetsMovedTotal.Inc()
	} else {
		metrics.AssetsCopiedTotal.Inc()
	}
	c.recordEvent(transferAction(move), n, "")
	c.obs.NodeTransferred(n.Path, target)
	return true, false, nil
}

// removeSources deletes the emptied source containers deepest-first
// after a complete move. Failures here are benign leftovers, not move
// failures.
func (c *Copier) removeSources(ctx context.Context, containers []catalog.Node) {
	for i := len(containers) - 1; i >= 0; i-- {
		if c.stopRequested(ctx) {
			return
		}
		if err := c.store.DeleteNode(ctx, containers[i].Path); err != nil {
			c.logger.Printf("could not remove source container %s: %v", containers[i].Path, err)
		}
	}
}

func (c *Copier) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return c.token != nil && c.token.Requested()
}

// rewrite maps a source-subtree path onto the destination subtree.
func rewrite(path, src, dst string) string {
	if path == src {
		return dst
	}
	return dst + strings.TrimPrefix(path, src)
}
