package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"asset-sweep/internal/catalog"
	"asset-sweep/internal/config"
	"asset-sweep/internal/discover"
	"asset-sweep/internal/exitcodes"
	"asset-sweep/internal/export"
	"asset-sweep/internal/history"
	"asset-sweep/internal/interrupt"
	"asset-sweep/internal/limiter"
	"asset-sweep/internal/logging"
	"asset-sweep/internal/metrics"
	"asset-sweep/internal/purge"
	"asset-sweep/internal/report"
	"asset-sweep/internal/safety"
	"asset-sweep/internal/transfer"
)

const defaultConfigPath = "/etc/asset-sweep/config.yaml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitcodes.InvalidConfig)
	}

	switch os.Args[1] {
	case "delete":
		runDelete(os.Args[2:])
	case "copy":
		runTransfer("copy", os.Args[2:])
	case "move":
		runTransfer("move", os.Args[2:])
	case "list":
		runList(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(exitcodes.InvalidConfig)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: asset-sweep <command> [flags]

Commands:
  delete   Delete an asset subtree from the remote catalog
  copy     Copy an asset subtree to another catalog path
  move     Move an asset subtree to another catalog path
  list     List an asset subtree, optionally exporting to CSV/JSON

Run 'asset-sweep <command> -h' for command flags.`)
}

// setup loads config and builds the shared pieces every command needs.
func setup(configPath string) (*config.Config, *log.Logger, *catalog.RESTClient) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("ERROR: Failed to load config: %v", err)
		os.Exit(exitcodes.InvalidConfig)
	}

	logger := logging.New(cfg.Logging.RotationDays)

	metrics.Init()
	if cfg.Prometheus.Port > 0 {
		addr := fmt.Sprintf(":%d", cfg.Prometheus.Port)
		logger.Printf("Starting Prometheus metrics on %s", addr)
		metrics.StartServer(addr, logger)
	}

	token := cfg.Catalog.Token
	if token == "" {
		token = os.Getenv("ASSET_SWEEP_TOKEN")
	}

	var pacer catalog.Pacer
	if iv := cfg.MinRequestInterval(); iv > 0 {
		pacer = limiter.New(iv)
	}
	store := catalog.NewRESTClient(cfg.Catalog.Endpoint, token, cfg.RequestTimeout(), pacer)
	return cfg, logger, store
}

func openHistory(cfg *config.Config, logger *log.Logger) *history.DB {
	if cfg.DatabasePath == "" {
		return nil
	}
	logger.Printf("Opening history database: %s", cfg.DatabasePath)
	db, err := history.Open(cfg.DatabasePath)
	if err != nil {
		logger.Printf("ERROR: Failed to open history database: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}
	return db
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	root := fs.String("root", "", "Root asset path to delete (required)")
	concurrency := fs.Int("concurrency", 0, "Deletion workers (default from config)")
	retries := fs.Int("retries", 0, "Max delete attempts per asset (default from config)")
	dryRun := fs.Bool("dry-run", false, "Discover and schedule without deleting anything")
	failuresFile := fs.String("failures-file", "", "Failure report filename (default: generated)")
	fs.Parse(args)

	if *root == "" {
		fmt.Fprintln(os.Stderr, "delete: -root is required")
		os.Exit(exitcodes.InvalidConfig)
	}

	cfg, logger, store := setup(*configPath)
	if *concurrency == 0 {
		*concurrency = cfg.Concurrency
	}
	if *retries == 0 {
		*retries = cfg.MaxRetries
	}
	if *dryRun {
		logger.Printf("DRY RUN MODE: no assets will be deleted")
	}

	db := openHistory(cfg, logger)
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close history database: %v", err)
			}
		}()
	}

	token := interrupt.NewToken()
	restore := interrupt.Install(token, logger, nil)
	defer restore()

	runner := purge.NewRunner(store, token, logger)
	runner.SetValidator(safety.NewValidator(*root, cfg.ProtectedPaths))
	runner.SetReporter(report.NewReporter(cfg.FailuresDir, runner.RunID))
	if db != nil {
		runner.SetHistory(db)
	}
	runner.SetObserver(&progressLogger{logger: logger})

	summary, err := runner.Run(context.Background(), *root, purge.Options{
		Concurrency:     *concurrency,
		MaxRetries:      *retries,
		DiscoverWorkers: cfg.DiscoverWorkers,
		DryRun:          *dryRun,
		FailuresFile:    *failuresFile,
	})
	if err != nil {
		logger.Printf("ERROR: Delete failed: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}

	switch {
	case summary.Cancelled:
		logger.Printf("Delete was interrupted; some assets may remain")
		os.Exit(exitcodes.Cancelled)
	case summary.Failed > 0:
		os.Exit(exitcodes.RuntimeError)
	}
}

func runTransfer(op string, args []string) {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	source := fs.String("source", "", "Source asset path (required)")
	dest := fs.String("dest", "", "Destination asset path (required)")
	workers := fs.Int("workers", 0, "Transfer workers (default from config)")
	fs.Parse(args)

	if *source == "" || *dest == "" {
		fmt.Fprintf(os.Stderr, "%s: -source and -dest are required\n", op)
		os.Exit(exitcodes.InvalidConfig)
	}

	cfg, logger, store := setup(*configPath)
	if *workers == 0 {
		*workers = cfg.Concurrency
	}

	db := openHistory(cfg, logger)
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close history database: %v", err)
			}
		}()
	}

	token := interrupt.NewToken()
	restore := interrupt.Install(token, logger, nil)
	defer restore()

	copier := transfer.NewCopier(store, token, logger)
	copier.SetWorkers(*workers)
	if db != nil {
		copier.SetHistory(db)
	}

	var summary *transfer.Summary
	var err error
	if op == "move" {
		summary, err = copier.Move(context.Background(), *source, *dest)
	} else {
		summary, err = copier.Copy(context.Background(), *source, *dest)
	}
	if err != nil {
		logger.Printf("ERROR: %s failed: %v", op, err)
		os.Exit(exitcodes.RuntimeError)
	}

	switch {
	case summary.Cancelled:
		os.Exit(exitcodes.Cancelled)
	case summary.Failed > 0:
		os.Exit(exitcodes.RuntimeError)
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	root := fs.String("root", "", "Root asset path to list (required)")
	workers := fs.Int("workers", 0, "Discovery workers (default from config)")
	exportPath := fs.String("export", "", "Export inventory to a .csv or .json file")
	fs.Parse(args)

	if *root == "" {
		fmt.Fprintln(os.Stderr, "list: -root is required")
		os.Exit(exitcodes.InvalidConfig)
	}

	cfg, logger, store := setup(*configPath)
	if *workers == 0 {
		*workers = cfg.DiscoverWorkers
	}

	tree, err := discover.Discover(context.Background(), store, *root, *workers, listPrinter{quiet: *exportPath != ""})
	if err != nil {
		logger.Printf("ERROR: List failed: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}

	nodes := tree.Nodes()
	if len(nodes) == 0 {
		logger.Printf("no assets found under %s", *root)
		return
	}

	if *exportPath != "" {
		if err := export.WriteFile(*exportPath, nodes); err != nil {
			logger.Printf("ERROR: Export failed: %v", err)
			os.Exit(exitcodes.RuntimeError)
		}
		logger.Printf("exported %d assets to %s", len(nodes), *exportPath)
		return
	}
	logger.Printf("found %d assets under %s", len(nodes), *root)
}

// listPrinter prints each discovered asset as it is found.
type listPrinter struct {
	quiet bool
}

func (p listPrinter) NodeDiscovered(n catalog.Node) {
	if !p.quiet {
		fmt.Printf("%s - %s\n", n.Path, n.Kind)
	}
}

func (p listPrinter) DiscoveryError(path string, err error) {
	fmt.Fprintf(os.Stderr, "error listing %s: %v\n", path, err)
}

// progressLogger reports deletion progress through the shared logger.
type progressLogger struct {
	purge.NopObserver
	logger *log.Logger
}

func (p *progressLogger) RunStarted(root string, total int) {
	p.logger.Printf("deleting %d assets under %s", total, root)
}

func (p *progressLogger) NodeFailed(n catalog.Node, attempts int, err error) {
	p.logger.Printf("FAILED %s after %d attempts: %v", n.Path, attempts, err)
}

func (p *progressLogger) NodeSkipped(n catalog.Node, reason string) {
	p.logger.Printf("SKIP %s: %s", n.Path, reason)
}
