// ABOUTME: Tests for JSON, DOT, and Markdown exporters: determinism, quoting, edge styling.
package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/2389-research/trunkline/graph"
)

func exportGraph() *graph.Graph {
	g := graph.New()
	api := &graph.Node{Type: "API Gateway", AccountName: "prod"}
	api.AddInvoke(graph.Edge{Name: "Handler", Type: "Lambda Function", AccountName: "prod"})
	g.AddNode("Api", api)

	handler := &graph.Node{Type: "Lambda Function", AccountName: "prod"}
	handler.AddInvoke(graph.Edge{Name: "Ghost", Type: graph.ExternalType, AccountName: graph.UnknownMeta})
	g.AddNode("Handler", handler)
	graph.DeriveInvokedBy(g)
	return g
}

func TestJSONDeterministic(t *testing.T) {
	g := exportGraph()
	first, err := JSON(g)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := JSON(g)
		if err != nil {
			t.Fatalf("JSON: %v", err)
		}
		if !bytes.Equal(first, next) {
			t.Fatal("JSON output differs between runs")
		}
	}
	if first[len(first)-1] != '\n' {
		t.Error("JSON output missing trailing newline")
	}
	if !strings.Contains(string(first), `"invoked_by"`) {
		t.Error("JSON output missing invoked_by field")
	}
}

func TestDOTOutput(t *testing.T) {
	out := DOT(exportGraph())

	if !strings.HasPrefix(out, "digraph invocations {\n") {
		t.Errorf("DOT missing header:\n%s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Error("DOT missing closing brace")
	}
	if !strings.Contains(out, `"Api" -> "Handler"`) {
		t.Errorf("DOT missing edge:\n%s", out)
	}
	// Dangling target renders dashed; defined targets do not.
	if !strings.Contains(out, `"Handler" -> "Ghost" [style=dashed, color=gray]`) {
		t.Errorf("DOT dangling edge not dashed:\n%s", out)
	}
	if strings.Contains(out, `"Api" -> "Handler" [style=dashed`) {
		t.Error("defined edge incorrectly dashed")
	}
	// Node labels carry type and account.
	if !strings.Contains(out, `label="Api\nAPI Gateway\nprod"`) {
		t.Errorf("DOT node label wrong:\n%s", out)
	}
	if !strings.Contains(out, `fillcolor="#90EE90"`) {
		t.Error("API Gateway node not color-coded")
	}
}

func TestDOTDeterministic(t *testing.T) {
	g := exportGraph()
	first := DOT(g)
	for i := 0; i < 5; i++ {
		if DOT(g) != first {
			t.Fatal("DOT output differs between runs")
		}
	}
}

func TestDOTQuoting(t *testing.T) {
	if got := quoteID("plain_id_9"); got != "plain_id_9" {
		t.Errorf("quoteID(plain_id_9) = %q, want bare", got)
	}
	if got := quoteID("CamelCase"); got != `"CamelCase"` {
		t.Errorf("quoteID(CamelCase) = %q, want quoted", got)
	}
	if got := quoteValue(`say "hi"`); got != `"say \"hi\""` {
		t.Errorf("quoteValue = %q", got)
	}
}

func TestMarkdownReport(t *testing.T) {
	out := Markdown(exportGraph())

	if !strings.HasPrefix(out, "# Invocation Graph\n") {
		t.Errorf("markdown missing title:\n%s", out)
	}
	if !strings.Contains(out, "> 2 resources across 1 accounts, 2 invocation edges") {
		t.Errorf("markdown summary wrong:\n%s", out)
	}
	if !strings.Contains(out, "- API Gateway: 1") || !strings.Contains(out, "- Lambda Function: 1") {
		t.Errorf("markdown type summary wrong:\n%s", out)
	}
	if !strings.Contains(out, "## Api (API Gateway)") {
		t.Errorf("markdown missing resource section:\n%s", out)
	}
	if !strings.Contains(out, "- Ghost (Unknown/External, Unknown)") {
		t.Errorf("markdown missing dangling edge:\n%s", out)
	}
	if !strings.Contains(out, "Invoked by: none") {
		t.Errorf("markdown missing empty invoked-by:\n%s", out)
	}

	// Api sorts before Handler.
	if strings.Index(out, "## Api") > strings.Index(out, "## Handler") {
		t.Error("resource sections out of order")
	}
}

func TestMarkdownEmptyGraph(t *testing.T) {
	out := Markdown(graph.New())
	if !strings.Contains(out, "> 0 resources across 0 accounts, 0 invocation edges") {
		t.Errorf("empty graph summary wrong:\n%s", out)
	}
	if strings.Contains(out, "---") {
		t.Error("empty graph should have no resource sections")
	}
}
