// ABOUTME: Help display for the trunkline CLI with grouped subcommands and examples.
// ABOUTME: Provides printHelp for polished usage output on stderr or stdout.
package main

import (
	"fmt"
	"io"
)

const trunklineASCII = `
      [Api]---------.
        |            v
        v         [Queue]
    [Handler]        |
        |            v
        '------>[Processor]
                     |
                     v
                 [Table]
`

// printHelp writes a formatted help message to w, including usage patterns,
// per-command flags, examples, and a docs link.
func printHelp(w io.Writer, ver string) {
	fmt.Fprint(w, trunklineASCII)
	fmt.Fprintf(w, "trunkline %s — CloudFormation invocation graph toolkit\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  trunkline parse -account NAME [flags] TEMPLATE...   Extract invocations from templates")
	fmt.Fprintln(w, "  trunkline derive [-graph FILE]                      Recompute invoked-by from invokes")
	fmt.Fprintln(w, "  trunkline validate [-graph FILE]                    Check graph consistency")
	fmt.Fprintln(w, "  trunkline explore [-graph FILE] [RESOURCE]          Interactive terminal explorer")
	fmt.Fprintln(w, "  trunkline export [-graph FILE] -format FORMAT       Write json, dot, or markdown")
	fmt.Fprintln(w, "  trunkline index [-graph FILE] [-db FILE]            Rebuild the SQLite index")
	fmt.Fprintln(w, "  trunkline query [-db FILE] [selector]               Query the SQLite index")
	fmt.Fprintln(w, "  trunkline serve [-addr HOST:PORT] [-graph FILE]     Start the HTTP server")
	fmt.Fprintln(w, "  trunkline runs -audit FILE                          List recorded extraction runs")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Parse Flags:")
	fmt.Fprintln(w, "  -account <name>       Account label stamped on this run's resources")
	fmt.Fprintln(w, "  -graph <file>         Graph JSON file (default: invocations.json)")
	fmt.Fprintln(w, "  -no-derive            Skip invoked-by derivation after the passes")
	fmt.Fprintln(w, "  -audit <file>         Append a run record to this JSONL audit log")
	fmt.Fprintln(w, "  -verbose              Print engine events to stderr")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Query Selectors:")
	fmt.Fprintln(w, "  -invokes <name>       Resources the named resource invokes")
	fmt.Fprintln(w, "  -invoked-by <name>    Resources that invoke the named resource")
	fmt.Fprintln(w, "  -type <tag>           Resources with the given display type")
	fmt.Fprintln(w, "  -top <n>              The N most-invoked resources")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  version               Print version and exit")
	fmt.Fprintln(w, "  help                  Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  trunkline parse -account prod stacks/api.yaml stacks/workers.yaml")
	fmt.Fprintln(w, "  trunkline parse -account staging -audit runs.jsonl stacks/*.yaml")
	fmt.Fprintln(w, "  trunkline explore OrderProcessor")
	fmt.Fprintln(w, "  trunkline export -format dot -out invocations.dot")
	fmt.Fprintln(w, "  trunkline index && trunkline query -top 10")
	fmt.Fprintln(w, "  trunkline serve -addr 127.0.0.1:9090")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  TRUNKLINE_GRAPH       Default graph file (currently %s)\n", defaultGraphPath())
	fmt.Fprintf(w, "  TRUNKLINE_INDEX       Default SQLite index file (currently %s)\n", defaultIndexPath())
	fmt.Fprintln(w, "  TRUNKLINE_ADDR        Default listen address for serve")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Docs: https://github.com/2389-research/trunkline")
}
