// ABOUTME: Exports the invocation graph as a deterministic Markdown report.
// ABOUTME: Sections: header with counts, type summary, then one section per resource sorted by name.
package export

import (
	"fmt"
	"strings"

	"github.com/2389-research/trunkline/graph"
)

// Markdown renders the graph as a Markdown report with deterministic
// ordering: nodes sorted by name, edges in their stored sorted order, type
// summary sorted by display type.
func Markdown(g *graph.Graph) string {
	var out strings.Builder

	ids := g.NodeIDs()
	fmt.Fprintln(&out, "# Invocation Graph")
	fmt.Fprintln(&out)
	fmt.Fprintf(&out, "> %d resources across %d accounts, %d invocation edges\n",
		len(ids), len(accountNames(g)), g.EdgeCount())

	if len(ids) == 0 {
		return out.String()
	}

	fmt.Fprintln(&out)
	fmt.Fprintln(&out, "## Resources by type")
	fmt.Fprintln(&out)
	counts := typeCounts(g)
	for _, typ := range sortedTypes(g) {
		fmt.Fprintf(&out, "- %s: %d\n", typ, counts[typ])
	}

	fmt.Fprintln(&out)
	fmt.Fprintln(&out, "---")

	for _, id := range ids {
		node := g.FindNode(id)
		fmt.Fprintln(&out)
		fmt.Fprintf(&out, "## %s (%s)\n", id, node.Type)
		fmt.Fprintln(&out)
		fmt.Fprintf(&out, "Account: %s\n", node.AccountName)

		fmt.Fprintln(&out)
		writeEdgeList(&out, "Invokes", node.Invokes)
		fmt.Fprintln(&out)
		writeEdgeList(&out, "Invoked by", node.InvokedBy)
	}

	return out.String()
}

func writeEdgeList(out *strings.Builder, heading string, edges []graph.Edge) {
	if len(edges) == 0 {
		fmt.Fprintf(out, "%s: none\n", heading)
		return
	}
	fmt.Fprintf(out, "%s:\n", heading)
	for _, edge := range edges {
		fmt.Fprintf(out, "- %s (%s, %s)\n", edge.Name, edge.Type, edge.AccountName)
	}
}

func accountNames(g *graph.Graph) []string {
	seen := make(map[string]bool)
	for _, id := range g.NodeIDs() {
		seen[g.FindNode(id).AccountName] = true
	}
	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	return accounts
}

func typeCounts(g *graph.Graph) map[string]int {
	counts := make(map[string]int)
	for _, id := range g.NodeIDs() {
		counts[g.FindNode(id).Type]++
	}
	return counts
}
