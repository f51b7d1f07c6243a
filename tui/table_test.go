// ABOUTME: Tests for relation row building and table rendering.
// ABOUTME: Covers continuous numbering, metadata fallbacks, and cursor line tracking.

package tui

import (
	"strings"
	"testing"

	"github.com/2389-research/trunkline/graph"
)

func explorerGraph() *graph.Graph {
	g := graph.New()

	api := &graph.Node{Type: "API Gateway", AccountName: "prod"}
	api.AddInvoke(graph.Edge{Name: "Handler", Type: "Lambda Function", AccountName: "prod"})
	g.AddNode("Api", api)

	handler := &graph.Node{Type: "Lambda Function", AccountName: "prod"}
	handler.AddInvoke(graph.Edge{Name: "Table", Type: "DynamoDB Table", AccountName: "prod"})
	handler.AddInvoke(graph.Edge{Name: "Ghost", Type: graph.ExternalType, AccountName: graph.UnknownMeta})
	g.AddNode("Handler", handler)

	g.AddNode("Table", &graph.Node{Type: "DynamoDB Table", AccountName: "prod"})

	graph.DeriveInvokedBy(g)
	return g
}

func TestBuildRowsContinuousNumbering(t *testing.T) {
	g := explorerGraph()

	rows := buildRows(g, "Handler")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	for i, want := range []struct {
		index   int
		name    string
		section string
	}{
		{1, "Table", "Invokes"},
		{2, "Ghost", "Invokes"},
		{3, "Api", "Invoked by"},
	} {
		if rows[i].Index != want.index {
			t.Errorf("row %d: index = %d, want %d", i, rows[i].Index, want.index)
		}
		if rows[i].Name != want.name {
			t.Errorf("row %d: name = %q, want %q", i, rows[i].Name, want.name)
		}
		if rows[i].Section != want.section {
			t.Errorf("row %d: section = %q, want %q", i, rows[i].Section, want.section)
		}
	}
}

func TestBuildRowsUnknownResource(t *testing.T) {
	g := explorerGraph()
	if rows := buildRows(g, "Nope"); rows != nil {
		t.Errorf("expected nil rows for unknown resource, got %d", len(rows))
	}
}

func TestBuildRowsFillsUnknownMetadata(t *testing.T) {
	g := graph.New()
	fn := &graph.Node{Type: "Lambda Function", AccountName: "prod"}
	fn.AddInvoke(graph.Edge{Name: "Mystery"})
	g.AddNode("Fn", fn)

	rows := buildRows(g, "Fn")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Type != graph.UnknownMeta {
		t.Errorf("type = %q, want %q", rows[0].Type, graph.UnknownMeta)
	}
	if rows[0].Account != graph.UnknownMeta {
		t.Errorf("account = %q, want %q", rows[0].Account, graph.UnknownMeta)
	}
}

func TestRenderRelationsSections(t *testing.T) {
	g := explorerGraph()
	rows := buildRows(g, "Handler")

	content, cursorLine := renderRelations(g, rows, 0)
	for _, want := range []string{"Invokes", "Invoked by", "Resource", "Type", "Account", "Table", "Ghost", "Api"} {
		if !strings.Contains(content, want) {
			t.Errorf("rendered table missing %q:\n%s", want, content)
		}
	}
	// Section heading and column header precede the first row.
	if cursorLine != 2 {
		t.Errorf("cursor line = %d, want 2", cursorLine)
	}
}

func TestRenderRelationsCursorAcrossSections(t *testing.T) {
	g := explorerGraph()
	rows := buildRows(g, "Handler")

	// Row 2 sits after: Invokes heading, header, two rows, a blank line,
	// the Invoked by heading, and its header.
	_, cursorLine := renderRelations(g, rows, 2)
	if cursorLine != 7 {
		t.Errorf("cursor line = %d, want 7", cursorLine)
	}
}

func TestRenderRelationsEmpty(t *testing.T) {
	g := explorerGraph()
	content, cursorLine := renderRelations(g, nil, 0)
	if content != "" {
		t.Errorf("expected empty content, got %q", content)
	}
	if cursorLine != -1 {
		t.Errorf("cursor line = %d, want -1", cursorLine)
	}
}
