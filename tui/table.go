// ABOUTME: Builds and renders the combined Invokes / Invoked by relation table.
// ABOUTME: Rows carry continuous numbering so a single index selects across both sections.

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2389-research/trunkline/graph"
)

// relationRow is one selectable entry in the relation table. Index is the
// 1-based selection number shown to the user, continuous across sections.
type relationRow struct {
	Index   int
	Name    string
	Type    string
	Account string
	Section string
}

// buildRows flattens a node's invokes and invoked-by edges into selectable
// rows. Invokes come first, numbered from 1; invoked-by rows continue the
// numbering so typed selection is unambiguous. Returns nil when the node is
// not defined in the graph.
func buildRows(g *graph.Graph, name string) []relationRow {
	node := g.FindNode(name)
	if node == nil {
		return nil
	}

	rows := make([]relationRow, 0, len(node.Invokes)+len(node.InvokedBy))
	index := 1
	for _, edge := range node.Invokes {
		rows = append(rows, edgeRow(index, edge, "Invokes"))
		index++
	}
	for _, edge := range node.InvokedBy {
		rows = append(rows, edgeRow(index, edge, "Invoked by"))
		index++
	}
	return rows
}

func edgeRow(index int, edge graph.Edge, section string) relationRow {
	typ := edge.Type
	if typ == "" {
		typ = graph.UnknownMeta
	}
	account := edge.AccountName
	if account == "" {
		account = graph.UnknownMeta
	}
	return relationRow{
		Index:   index,
		Name:    edge.Name,
		Type:    typ,
		Account: account,
		Section: section,
	}
}

// renderRelations renders the rows as sectioned tables with aligned columns.
// The second return value is the line offset of the cursor row within the
// rendered text, or -1 when the cursor points at no row; the explorer uses it
// to keep the selection scrolled into view.
func renderRelations(g *graph.Graph, rows []relationRow, cursor int) (string, int) {
	if len(rows) == 0 {
		return "", -1
	}

	idxW := len("#")
	if w := len(strconv.Itoa(rows[len(rows)-1].Index)); w > idxW {
		idxW = w
	}
	nameW, typW, accW := len("Resource"), len("Type"), len("Account")
	for _, r := range rows {
		if len(r.Name) > nameW {
			nameW = len(r.Name)
		}
		if len(r.Type) > typW {
			typW = len(r.Type)
		}
		if len(r.Account) > accW {
			accW = len(r.Account)
		}
	}

	var b strings.Builder
	line := 0
	cursorLine := -1
	lastSection := ""
	for i, r := range rows {
		if r.Section != lastSection {
			if lastSection != "" {
				b.WriteString("\n")
				line++
			}
			b.WriteString(SectionStyle.Render(r.Section))
			b.WriteString("\n")
			line++
			header := fmt.Sprintf(" %*s  %-*s  %-*s  %-*s", idxW, "#", nameW, "Resource", typW, "Type", accW, "Account")
			b.WriteString(HeaderStyle.Render(header))
			b.WriteString("\n")
			line++
			lastSection = r.Section
		}

		text := fmt.Sprintf(" %*d  %-*s  %-*s  %-*s", idxW, r.Index, nameW, r.Name, typW, r.Type, accW, r.Account)
		switch {
		case i == cursor:
			cursorLine = line
			b.WriteString(SelectedStyle.Render(text))
		case !g.HasNode(r.Name):
			b.WriteString(ExternalStyle.Render(text))
		default:
			b.WriteString(text)
		}
		b.WriteString("\n")
		line++
	}
	return strings.TrimRight(b.String(), "\n"), cursorLine
}
