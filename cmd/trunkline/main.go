// ABOUTME: CLI entrypoint for the trunkline invocation graph toolkit.
// ABOUTME: Dispatches parse, derive, validate, explore, export, index, query, serve, and runs subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/trunkline/export"
	"github.com/2389-research/trunkline/extract"
	"github.com/2389-research/trunkline/graph"
	"github.com/2389-research/trunkline/store"
	"github.com/2389-research/trunkline/tui"
	"github.com/2389-research/trunkline/web"
)

var version = "dev"

const (
	defaultGraphFile = "invocations.json"
	defaultIndexFile = "invocations.db"
)

// defaultGraphPath returns the graph file used when -graph is not given,
// honoring the TRUNKLINE_GRAPH override.
func defaultGraphPath() string {
	return envOrDefault("TRUNKLINE_GRAPH", defaultGraphFile)
}

// defaultIndexPath returns the SQLite index file used when -db is not given,
// honoring the TRUNKLINE_INDEX override.
func defaultIndexPath() string {
	return envOrDefault("TRUNKLINE_INDEX", defaultIndexFile)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches to the subcommand named by the first argument.
// Returns an exit code: 0 for success, 1 for failure, 2 for usage errors.
func run(args []string) int {
	if len(args) == 0 {
		printHelp(os.Stderr, version)
		return 0
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "parse":
		return runParse(rest)
	case "derive":
		return runDerive(rest)
	case "validate":
		return runValidate(rest)
	case "explore":
		return runExplore(rest)
	case "export":
		return runExport(rest)
	case "index":
		return runIndex(rest)
	case "query":
		return runQuery(rest)
	case "serve":
		return runServe(rest)
	case "runs":
		return runRuns(rest)
	case "help", "-h", "-help", "--help":
		printHelp(os.Stdout, version)
		return 0
	case "version", "-version", "--version":
		fmt.Printf("trunkline %s\n", version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", cmd)
		printHelp(os.Stderr, version)
		return 2
	}
}

// runParse reads templates, runs an extraction pass over each, merges the
// results into the persisted graph, and saves it back.
func runParse(args []string) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	account := fs.String("account", graph.UnknownMeta, "Account label stamped on this run's resources")
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file to load and save")
	noDerive := fs.Bool("no-derive", false, "Skip invoked-by derivation after the passes")
	auditPath := fs.String("audit", "", "Append a run record to this JSONL audit log")
	verbose := fs.Bool("verbose", false, "Print engine events to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one template file required (use trunkline parse [flags] TEMPLATE...)")
		return 2
	}

	inputs := make([]extract.PassInput, 0, fs.NArg())
	for _, path := range fs.Args() {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		inputs = append(inputs, extract.PassInput{Name: path, Source: source, Account: *account})
	}

	base, err := store.LoadGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	engineCfg := extract.EngineConfig{}
	if *verbose {
		engineCfg.EventHandler = verboseEventHandler
	}
	engine := extract.NewEngine(engineCfg)

	merged, result := engine.Run(inputs, base)
	if !*noDerive {
		engine.Derive(merged)
	}

	if err := store.SaveGraph(*graphPath, merged); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if *auditPath != "" {
		if err := appendRunRecord(*auditPath, "parse", *account, fs.Args(), result, merged); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not append audit record: %v\n", err)
		}
	}

	for _, f := range result.Failures {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", f.Name, f.Err)
	}

	fmt.Printf("Processed %d of %d templates.\n", result.Passes, len(inputs))
	fmt.Printf("Graph: %d resources, %d invocation edges -> %s\n", merged.Len(), merged.EdgeCount(), *graphPath)

	if len(result.Failures) > 0 {
		return 1
	}
	return 0
}

// runDerive recomputes the invoked-by direction over a persisted graph.
func runDerive(args []string) int {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file to load and save")
	verbose := fs.Bool("verbose", false, "Print engine events to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	g, err := loadExistingGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	engineCfg := extract.EngineConfig{}
	if *verbose {
		engineCfg.EventHandler = verboseEventHandler
	}
	engine := extract.NewEngine(engineCfg)

	dangling := engine.Derive(g)

	if err := store.SaveGraph(*graphPath, g); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("Derived invoked-by for %d resources (%d dangling targets).\n", g.Len(), len(dangling))
	return 0
}

// runValidate checks reciprocity and metadata consistency of a persisted
// graph, printing violations to stderr.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file to check")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	g, err := loadExistingGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	violations := graph.Validate(g)
	for _, v := range violations {
		fmt.Fprintln(os.Stderr, v.String())
	}
	if len(violations) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d violations.\n", len(violations))
		return 1
	}

	fmt.Println("Graph is consistent.")
	return 0
}

// runExplore launches the interactive terminal explorer over a persisted
// graph, optionally starting at a named resource.
func runExplore(args []string) int {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file to explore")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	start := ""
	if fs.NArg() > 0 {
		start = fs.Arg(0)
	}

	g, err := loadExistingGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	p := tea.NewProgram(tui.NewExplorer(g, start), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runExport writes the graph in the requested format to stdout or a file.
func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file to export")
	format := fs.String("format", "json", "Output format: json, dot, or markdown")
	out := fs.String("out", "", "Write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	g, err := loadExistingGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	var data []byte
	switch strings.ToLower(*format) {
	case "json":
		data, err = export.JSON(g)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	case "dot":
		data = []byte(export.DOT(g))
	case "markdown", "md":
		data = []byte(export.Markdown(g))
	default:
		fmt.Fprintf(os.Stderr, "error: unknown format %q (want json, dot, or markdown)\n", *format)
		return 2
	}

	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}
	if _, err := os.Stdout.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runIndex rebuilds the SQLite index from a persisted graph.
func runIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file to index")
	dbPath := fs.String("db", defaultIndexPath(), "SQLite index file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	g, err := loadExistingGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	idx, err := store.OpenSqlite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer idx.Close()

	if err := idx.Rebuild(g); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("Indexed %d resources, %d invocation edges -> %s\n", g.Len(), g.EdgeCount(), *dbPath)
	return 0
}

// runQuery answers read queries from the SQLite index. Without a selector
// flag it prints an index summary.
func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	dbPath := fs.String("db", defaultIndexPath(), "SQLite index file")
	invokes := fs.String("invokes", "", "List resources the named resource invokes")
	invokedBy := fs.String("invoked-by", "", "List resources that invoke the named resource")
	typeTag := fs.String("type", "", "List resources with the given display type")
	top := fs.Int("top", 0, "List the N most-invoked resources")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: index file %s: %v\n", *dbPath, err)
		return 1
	}
	idx, err := store.OpenSqlite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer idx.Close()

	switch {
	case *invokes != "":
		rows, err := idx.Invokes(*invokes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		printEdgeRows(rows)
	case *invokedBy != "":
		rows, err := idx.InvokedBy(*invokedBy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		printEdgeRows(rows)
	case *typeTag != "":
		rows, err := idx.FilterByType(*typeTag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		for _, r := range rows {
			fmt.Printf("%s (%s / %s)\n", r.Name, r.Type, r.AccountName)
		}
	case *top > 0:
		rows, err := idx.TopInvoked(*top)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		for _, r := range rows {
			fmt.Printf("%4d  %s (%s / %s)\n", r.InvokedByCount, r.Name, r.Type, r.AccountName)
		}
	default:
		nodes, err := idx.NodeCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		edges, err := idx.EdgeCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		indexedAt, ok, err := idx.IndexedAt()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		if ok {
			fmt.Printf("%d resources, %d invocation edges (indexed %s)\n", nodes, edges, indexedAt.Format(time.RFC3339))
		} else {
			fmt.Printf("%d resources, %d invocation edges\n", nodes, edges)
		}
	}
	return 0
}

// runServe starts the HTTP graph server with signal-driven shutdown.
func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", envOrDefault("TRUNKLINE_ADDR", "127.0.0.1:8080"), "Listen address")
	graphPath := fs.String("graph", defaultGraphPath(), "Graph JSON file backing the server")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	srv, err := web.NewServer(web.ServerConfig{Addr: *addr, GraphPath: *graphPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	// Set up context with signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "listening on %s\n", srv.Addr())
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runRuns lists the extraction runs recorded in a JSONL audit log.
func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	auditPath := fs.String("audit", "", "JSONL audit log to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *auditPath == "" {
		fmt.Fprintln(os.Stderr, "error: -audit FILE required")
		return 2
	}

	records, err := store.ReplayAudit(*auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	for _, rec := range records {
		status := "ok"
		if len(rec.Failures) > 0 {
			status = fmt.Sprintf("%d failures", len(rec.Failures))
		}
		fmt.Printf("%s  %s  %s  account=%s  templates=%d  passes=%d  nodes=%d  edges=%d  %s\n",
			rec.RunID, rec.StartedAt.Format(time.RFC3339), rec.Command, rec.Account,
			len(rec.Templates), rec.Passes, rec.Nodes, rec.Edges, status)
	}
	return 0
}

// loadExistingGraph loads a graph file that must already exist. Commands that
// only read the graph use this so a typo'd path fails loudly instead of
// silently producing an empty graph.
func loadExistingGraph(path string) (*graph.Graph, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("graph file %s: %w", path, err)
	}
	return store.LoadGraph(path)
}

// appendRunRecord writes one audit record describing a completed run.
func appendRunRecord(path, command, account string, templates []string, result *extract.RunResult, g *graph.Graph) error {
	audit, err := store.OpenAudit(path)
	if err != nil {
		return err
	}
	defer audit.Close()

	failures := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}

	return audit.Append(&store.RunRecord{
		RunID:      store.NewRunID(),
		Command:    command,
		Account:    account,
		Templates:  templates,
		Passes:     result.Passes,
		Failures:   failures,
		Nodes:      g.Len(),
		Edges:      g.EdgeCount(),
		StartedAt:  result.Started,
		FinishedAt: result.Finished,
	})
}

func printEdgeRows(rows []store.EdgeRow) {
	for _, r := range rows {
		fmt.Printf("%s -> %s (%s / %s)\n", r.Source, r.Target, r.TargetType, r.TargetAccount)
	}
}

// verboseEventHandler prints engine lifecycle events to stderr.
func verboseEventHandler(evt extract.EngineEvent) {
	switch evt.Type {
	case extract.EventPassStarted:
		fmt.Fprintf(os.Stderr, "[pass] %v (account: %v) started\n", evt.Data["name"], evt.Data["account"])
	case extract.EventPassCompleted:
		fmt.Fprintf(os.Stderr, "[pass] %v completed (%v resources)\n", evt.Data["name"], evt.Data["resources"])
	case extract.EventPassFailed:
		fmt.Fprintf(os.Stderr, "[pass] %v failed: %v\n", evt.Data["name"], evt.Data["error"])
	case extract.EventEdgeAdded:
		fmt.Fprintf(os.Stderr, "[edge] %s -> %v (via %v)\n", evt.NodeID, evt.Data["target"], evt.Data["via"])
	case extract.EventPseudoCreated:
		fmt.Fprintf(os.Stderr, "[pseudo] %s (%v / %v)\n", evt.NodeID, evt.Data["type"], evt.Data["account_name"])
	case extract.EventUnresolvedReference:
		fmt.Fprintf(os.Stderr, "[skip] %s: unresolved %v in %v\n", evt.NodeID, evt.Data["value"], evt.Data["where"])
	case extract.EventMergeDone:
		fmt.Fprintf(os.Stderr, "[merge] %v: %v nodes, %v edges\n", evt.Data["name"], evt.Data["nodes"], evt.Data["edges"])
	case extract.EventDanglingTarget:
		fmt.Fprintf(os.Stderr, "[dangling] %s -> %v\n", evt.NodeID, evt.Data["target"])
	case extract.EventDeriveDone:
		fmt.Fprintf(os.Stderr, "[derive] %v nodes, %v dangling targets\n", evt.Data["nodes"], evt.Data["dangling"])
	}
}
