// ABOUTME: Serializer that renders the invocation graph as a DOT-formatted source string.
// ABOUTME: Nodes are color-coded by resource type; dangling edge targets render dashed.
package export

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/2389-research/trunkline/graph"
)

// typeColors maps display types to fill colors for visualization.
var typeColors = map[string]string{
	"Lambda Function":         "#ADD8E6", // function → blue
	"Lambda Function (SAM)":   "#ADD8E6",
	"Step Function":           "#DDA0DD", // orchestration → purple
	"API Gateway":             "#90EE90", // entry point → green
	"AppSync API":             "#90EE90",
	"CloudFront Distribution": "#90EE90",
	"DynamoDB Table":          "#FFFFE0", // data → yellow
	"S3 Bucket":               "#FFFFE0",
	"SQS Queue":               "#FFA500", // queue → orange
	"SNS Topic":               "#FFB6C1", // fan-out → pink
	"S3 Service":              "#D3D3D3", // external services → gray
	"EventBridge Service":     "#D3D3D3",
	"API Gateway Service":     "#D3D3D3",
	"SQS Service":             "#D3D3D3",
}

// DOT converts the graph to a DOT-formatted string with deterministic output.
// Nodes are sorted by name; each node's label carries its type and account.
func DOT(g *graph.Graph) string {
	var b strings.Builder

	b.WriteString("digraph invocations {\n")
	b.WriteString("  graph [rankdir=LR]\n")
	b.WriteString("  node [shape=box, style=filled, fillcolor=white]\n")
	b.WriteString("\n")

	ids := g.NodeIDs()
	for _, id := range ids {
		node := g.FindNode(id)
		label := fmt.Sprintf("%s\n%s\n%s", id, node.Type, node.AccountName)
		attrs := fmt.Sprintf("label=%s", quoteValue(label))
		if color, ok := typeColors[node.Type]; ok {
			attrs += fmt.Sprintf(", fillcolor=%s", quoteValue(color))
		}
		fmt.Fprintf(&b, "  %s [%s]\n", quoteID(id), attrs)
	}

	if len(ids) > 0 {
		b.WriteString("\n")
	}

	// Edges in sorted source order; per-node edges are already sorted by
	// target. Targets without a node definition render dashed.
	for _, id := range ids {
		node := g.FindNode(id)
		for _, edge := range node.Invokes {
			if g.HasNode(edge.Name) {
				fmt.Fprintf(&b, "  %s -> %s\n", quoteID(id), quoteID(edge.Name))
			} else {
				fmt.Fprintf(&b, "  %s -> %s [style=dashed, color=gray]\n", quoteID(id), quoteID(edge.Name))
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// quoteID returns a DOT-safe representation of a node identifier.
func quoteID(id string) string {
	if isBareIdentifier(id) {
		return id
	}
	return quoteValue(id)
}

// quoteValue double-quotes a value with DOT escaping.
func quoteValue(val string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range val {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// isBareIdentifier returns true if val can be written without quotes in DOT:
// lowercase letters, digits, and underscores only.
func isBareIdentifier(val string) bool {
	if val == "" {
		return false
	}
	for _, ch := range val {
		if ch != '_' && !unicode.IsLower(ch) && !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// sortedTypes returns the distinct display types present in the graph.
func sortedTypes(g *graph.Graph) []string {
	seen := make(map[string]bool)
	for _, id := range g.NodeIDs() {
		seen[g.FindNode(id).Type] = true
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
