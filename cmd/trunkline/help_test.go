// ABOUTME: Tests for the CLI help output.
// ABOUTME: Verifies the usage block lists every subcommand and the version string.

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintHelpListsSubcommands(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "1.2.3")
	out := buf.String()

	for _, want := range []string{
		"trunkline 1.2.3",
		"Usage:",
		"parse", "derive", "validate", "explore", "export", "index", "query", "serve", "runs",
		"Parse Flags:",
		"Query Selectors:",
		"Examples:",
		"Environment:",
		"TRUNKLINE_GRAPH",
		"Docs:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestPrintHelpShowsBanner(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "dev")
	if !strings.Contains(buf.String(), "[Handler]") {
		t.Error("help output missing the banner diagram")
	}
}
