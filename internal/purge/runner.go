package purge

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"asset-sweep/internal/catalog"
	"asset-sweep/internal/discover"
	"asset-sweep/internal/history"
	"asset-sweep/internal/interrupt"
	"asset-sweep/internal/metrics"
	"asset-sweep/internal/report"
	"asset-sweep/internal/retry"
	"asset-sweep/internal/safety"
)

// Summary is the caller-visible result of a run. Always returned, even
// on partial failure or cancellation.
type Summary struct {
	Root            string
	TotalDiscovered int
	Succeeded       int
	Failed          int
	Skipped         int
	NotProcessed    int
	Cancelled       bool
	FailuresFile    string
	Duration        time.Duration
}

// Options tunes one run.
type Options struct {
	// Concurrency is the deletion worker pool size, minimum 1.
	Concurrency int
	// MaxRetries is the per-node attempt budget, minimum 1.
	MaxRetries int
	// DiscoverWorkers sizes the discovery pool independently of the
	// deletion pool. Defaults to Concurrency.
	DiscoverWorkers int
	// DryRun discovers and schedules but never calls the remote delete.
	DryRun bool
	// FailuresFile overrides the generated failure-report filename.
	FailuresFile string
}

func (o *Options) normalize() {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.DiscoverWorkers < 1 {
		o.DiscoverWorkers = o.Concurrency
	}
}

// Runner deletes whole subtrees of the remote catalog: discover every
// descendant, sort deepest first, then drain a bounded worker pool under
// the cancellation token's supervision.
type Runner struct {
	RunID string

	store     catalog.Store
	token     *interrupt.Token
	logger    *log.Logger
	policy    *retry.Policy
	validator *safety.Validator
	reporter  *report.Reporter
	historyDB *history.DB
	obs       Observer
}

// NewRunner creates a runner. token and logger may be nil; everything
// else is attached through the setters below.
func NewRunner(store catalog.Store, token *interrupt.Token, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		RunID:  uuid.NewString(),
		store:  store,
		token:  token,
		logger: logger,
		obs:    NopObserver{},
	}
}

// SetPolicy replaces the per-run retry policy. Without one, Run builds a
// default policy from Options.MaxRetries.
func (r *Runner) SetPolicy(p *retry.Policy) { r.policy = p }

// SetValidator installs a safety validator; rejected nodes become
// skipped outcomes and never reach the remote.
func (r *Runner) SetValidator(v *safety.Validator) { r.validator = v }

// SetReporter installs a failure reporter, flushed once per run.
func (r *Runner) SetReporter(rep *report.Reporter) { r.reporter = rep }

// SetHistory installs the deletion-history database.
func (r *Runner) SetHistory(db *history.DB) { r.historyDB = db }

// SetObserver installs the progress observer.
func (r *Runner) SetObserver(obs Observer) {
	if obs != nil {
		r.obs = obs
	}
}

// Run purges the subtree rooted at root. Only a root fetch failure is
// surfaced as an error; every per-node failure lands in the Summary.
func (r *Runner) Run(ctx context.Context, root string, opts Options) (*Summary, error) {
	opts.normalize()
	start := time.Now()
	metrics.RunsTotal.Inc()

	tree, err := discover.Discover(ctx, r.store, root, opts.DiscoverWorkers, discoveryObserver{r})
	if err != nil {
		return nil, err
	}

	nodes := tree.Nodes()
	summary := &Summary{Root: root, TotalDiscovered: len(nodes)}

	if len(nodes) == 0 {
		r.logger.Printf("no assets found under %s", root)
		r.obs.RunStarted(root, 0)
		r.finish(summary, start)
		r.obs.RunFinished(*summary)
		return summary, nil
	}
	r.logger.Printf("found %d assets to delete under %s", len(nodes), root)

	// Deepest first. A heuristic ordering, not a dependency graph: ties
	// break by discovery order, and a container can still be non-empty
	// when its turn arrives (handled by the blocked-retry path).
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Depth() > nodes[j].Depth()
	})

	r.beginHistory(root, opts, start)
	r.obs.RunStarted(root, len(nodes))

	policy := r.policy
	if policy == nil {
		policy = retry.NewPolicy(opts.MaxRetries)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan catalog.Node)
	)

	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for node := range jobs {
				out := r.deleteOne(ctx, policy, node, opts.DryRun)
				mu.Lock()
				switch out.Status {
				case retry.StatusSucceeded:
					summary.Succeeded++
				case retry.StatusSkipped:
					summary.Skipped++
				case retry.StatusFailed:
					summary.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, node := range nodes {
		if r.cancelled(ctx) {
			summary.Cancelled = true
			break
		}
		jobs <- node
	}
	close(jobs)
	wg.Wait()

	summary.NotProcessed = summary.TotalDiscovered - summary.Succeeded - summary.Failed - summary.Skipped

	if summary.Cancelled {
		metrics.CancellationsTotal.Inc()
		r.logger.Printf("run interrupted: %d assets were never dispatched", summary.NotProcessed)
	}

	r.flushFailures(summary, opts.FailuresFile)
	r.finish(summary, start)
	r.obs.RunFinished(*summary)
	return summary, nil
}

func (r *Runner) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return r.token != nil && r.token.Requested()
}

// deleteOne produces exactly one outcome for a dispatched node.
func (r *Runner) deleteOne(ctx context.Context, policy *retry.Policy, node catalog.Node, dryRun bool) retry.Outcome {
	if r.validator != nil {
		if verr := r.validator.ValidateDeleteTarget(node.Path); verr != nil {
			out := retry.Skipped(verr.Error())
			metrics.AssetsSkippedTotal.Inc()
			r.recordEvent(history.ActionSkip, node, 0, verr.Error())
			r.obs.NodeSkipped(node, out.Reason)
			return out
		}
	}

	if dryRun {
		out := retry.Succeeded(0)
		r.recordEvent(history.ActionDryRun, node, 0, "")
		r.obs.NodeDeleted(node, 0)
		return out
	}

	out := policy.Delete(ctx, r.store, node.Path)
	if out.Attempts > 1 {
		metrics.DeleteRetriesTotal.Add(float64(out.Attempts - 1))
	}

	switch out.Status {
	case retry.StatusSucceeded:
		metrics.AssetsDeletedTotal.Inc()
		r.recordEvent(history.ActionDelete, node, out.Attempts, "")
		r.obs.NodeDeleted(node, out.Attempts)
	case retry.StatusFailed:
		metrics.DeleteFailuresTotal.Inc()
		errMsg := ""
		if out.Err != nil {
			errMsg = out.Err.Error()
		}
		r.recordEvent(history.ActionError, node, out.Attempts, errMsg)
		if r.reporter != nil {
			r.reporter.Record(report.FailureRecord{
				Path:     node.Path,
				Error:    errMsg,
				Attempts: out.Attempts,
			})
		}
		r.logger.Printf("failed to delete %s after %d attempts: %v", node.Path, out.Attempts, out.Err)
		r.obs.NodeFailed(node, out.Attempts, out.Err)
	}
	return out
}

func (r *Runner) beginHistory(root string, opts Options, start time.Time) {
	if r.historyDB == nil {
		return
	}
	op := "delete"
	if opts.DryRun {
		op = "dry-run"
	}
	if err := r.historyDB.BeginRun(r.RunID, root, op, start); err != nil {
		r.logger.Printf("failed to record run start: %v", err)
	}
}

func (r *Runner) recordEvent(action string, node catalog.Node, attempts int, errMsg string) {
	if r.historyDB == nil {
		return
	}
	if err := r.historyDB.RecordEvent(r.RunID, action, node, attempts, errMsg); err != nil {
		r.logger.Printf("failed to record history event for %s: %v", node.Path, err)
	}
}

// flushFailures persists failure records. Best-effort: an I/O failure is
// logged and the run's result stands.
func (r *Runner) flushFailures(summary *Summary, filename string) {
	if r.reporter == nil || r.reporter.Count() == 0 {
		return
	}
	path, err := r.reporter.Flush(filename)
	if err != nil {
		r.logger.Printf("failed to persist failure report: %v", err)
		return
	}
	summary.FailuresFile = path
	r.logger.Printf("wrote %d failure records to %s", r.reporter.Count(), path)
}

func (r *Runner) finish(summary *Summary, start time.Time) {
	summary.Duration = time.Since(start)
	metrics.RunDuration.Observe(summary.Duration.Seconds())
	metrics.LastRunTimestamp.Set(float64(time.Now().Unix()))

	if r.historyDB != nil && summary.TotalDiscovered > 0 {
		err := r.historyDB.FinishRun(r.RunID, time.Now(), history.RunCounts{
			TotalDiscovered: summary.TotalDiscovered,
			Succeeded:       summary.Succeeded,
			Failed:          summary.Failed,
			Skipped:         summary.Skipped,
			NotProcessed:    summary.NotProcessed,
			Cancelled:       summary.Cancelled,
		})
		if err != nil {
			r.logger.Printf("failed to record run completion: %v", err)
		}
	}

	r.logger.Printf("run complete: total=%d succeeded=%d failed=%d skipped=%d not_processed=%d cancelled=%v duration=%.3fs",
		summary.TotalDiscovered, summary.Succeeded, summary.Failed, summary.Skipped,
		summary.NotProcessed, summary.Cancelled, summary.Duration.Seconds())
}

// discoveryObserver adapts runner logging/metrics to discovery events.
type discoveryObserver struct {
	r *Runner
}

func (d discoveryObserver) NodeDiscovered(catalog.Node) {
	metrics.AssetsDiscoveredTotal.Inc()
}

func (d discoveryObserver) DiscoveryError(path string, err error) {
	metrics.DiscoveryErrorsTotal.Inc()
	d.r.logger.Printf("error discovering %s (subtree skipped): %v", path, err)
}
