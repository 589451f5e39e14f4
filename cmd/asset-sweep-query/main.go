package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"asset-sweep/internal/exitcodes"
	"asset-sweep/internal/history"
)

func main() {
	dbPath := flag.String("db", "/var/lib/asset-sweep/history.db", "Path to history database")
	recent := flag.Int("recent", 0, "Show N most recent events")
	runs := flag.Int("runs", 0, "Show N most recent runs")
	runID := flag.String("run", "", "Show all events of one run")
	action := flag.String("action", "", "Filter events by action (DELETE, SKIP, ERROR, COPY, MOVE, DRY_RUN)")
	pathPattern := flag.String("path", "", "Filter events by path pattern (SQL LIKE syntax)")
	stats := flag.Bool("stats", false, "Show aggregate statistics")
	days := flag.Int("days", 30, "Number of days for statistics")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	db, err := history.Open(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open history database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close history database: %v", err)
		}
	}()

	switch {
	case *stats:
		showStats(db, *days, *jsonOutput)
	case *recent > 0:
		events, err := db.RecentEvents(*recent)
		showEvents(events, err, *jsonOutput)
	case *runs > 0:
		showRuns(db, *runs, *jsonOutput)
	case *runID != "":
		events, err := db.EventsByRun(*runID)
		showEvents(events, err, *jsonOutput)
	case *action != "":
		events, err := db.EventsByAction(*action)
		showEvents(events, err, *jsonOutput)
	case *pathPattern != "":
		events, err := db.EventsByPath(*pathPattern)
		showEvents(events, err, *jsonOutput)
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  asset-sweep-query --recent 10                # Show 10 most recent events")
		fmt.Println("  asset-sweep-query --runs 5                   # Show 5 most recent runs")
		fmt.Println("  asset-sweep-query --run <id>                 # Show one run's events")
		fmt.Println("  asset-sweep-query --action ERROR             # Show failed deletions")
		fmt.Println("  asset-sweep-query --path 'projects/demo/%'   # Show events under a subtree")
		fmt.Println("  asset-sweep-query --stats                    # Show aggregate statistics")
		os.Exit(exitcodes.InvalidConfig)
	}
}

func showEvents(events []history.Event, err error, jsonOutput bool) {
	if err != nil {
		log.Fatalf("ERROR: Query failed: %v", err)
	}
	if jsonOutput {
		data, _ := json.MarshalIndent(events, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(events) == 0 {
		fmt.Println("No events found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTION\tPATH\tKIND\tATTEMPTS\tERROR")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Action, e.Path, e.Kind, e.Attempts, e.ErrorMessage)
	}
	w.Flush()
}

func showRuns(db *history.DB, limit int, jsonOutput bool) {
	runs, err := db.RecentRuns(limit)
	if err != nil {
		log.Fatalf("ERROR: Query failed: %v", err)
	}
	if jsonOutput {
		data, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tOP\tROOT\tTOTAL\tOK\tFAILED\tSKIPPED\tNOT_PROCESSED\tCANCELLED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%v\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.RunID, r.Operation, r.Root,
			r.TotalDiscovered, r.Succeeded, r.Failed, r.Skipped, r.NotProcessed, r.Cancelled)
	}
	w.Flush()
}

func showStats(db *history.DB, days int, jsonOutput bool) {
	stats, err := db.GetStats(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to get statistics: %v", err)
	}
	if jsonOutput {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Sweep Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Runs:          %d\n", stats.Runs)
	fmt.Printf("Total Events:  %d\n", stats.TotalEvents)
	fmt.Printf("Deleted:       %d\n", stats.Deleted)
	fmt.Printf("Errors:        %d\n", stats.Errors)
	fmt.Printf("Skipped:       %d\n", stats.Skipped)
	fmt.Printf("Copied:        %d\n", stats.Copied)
	fmt.Printf("Moved:         %d\n", stats.Moved)
}
