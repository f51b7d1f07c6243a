// ABOUTME: Derives the invoked_by relation as the inverse of invokes, and validates reciprocity of persisted graphs.
// ABOUTME: Validation collects every violation (missing definitions, asymmetric edges) instead of stopping at the first.
package graph

import "fmt"

// DanglingRef records an invokes edge whose target has no node definition,
// observed while deriving invoked_by. The edge itself is preserved; the
// reference is reported so callers can surface it.
type DanglingRef struct {
	Source string
	Target string
}

// DeriveInvokedBy recomputes every node's invoked_by list as the exact inverse
// of the graph's invokes edges. Existing invoked_by entries are discarded
// first, so the derivation is safe to repeat. It must run over the complete
// merged graph, not per template: an edge merged late can target a node merged
// early. Returns the dangling references encountered, in source order.
func DeriveInvokedBy(g *Graph) []DanglingRef {
	for _, n := range g.Nodes {
		n.InvokedBy = []Edge{}
	}

	var dangling []DanglingRef
	for _, src := range g.NodeIDs() {
		n := g.Nodes[src]
		for _, e := range n.Invokes {
			if e.Name == "" {
				continue
			}
			target := g.FindNode(e.Name)
			if target == nil {
				dangling = append(dangling, DanglingRef{Source: src, Target: e.Name})
				continue
			}
			target.AddInvokedBy(Edge{Name: src, Type: n.Type, AccountName: n.AccountName})
		}
	}

	g.SortEdges()
	return dangling
}

// ViolationKind classifies a reciprocity finding.
type ViolationKind string

const (
	// ViolationMissingNode means an edge names an identifier with no node definition.
	ViolationMissingNode ViolationKind = "missing-node"
	// ViolationMissingReciprocal means an edge has no matching entry in the reverse direction.
	ViolationMissingReciprocal ViolationKind = "missing-reciprocal"
)

// Violation is one reciprocity or definition failure found by Validate.
// Source and Target name the edge endpoints in invokes direction; Direction
// records which side of the graph the offending entry was found on.
type Violation struct {
	Kind      ViolationKind
	Source    string
	Target    string
	Direction string // "invokes" or "invoked_by"
}

func (v Violation) String() string {
	switch {
	case v.Kind == ViolationMissingNode && v.Direction == "invokes":
		return fmt.Sprintf("%s invokes %q but %q has no definition", v.Source, v.Target, v.Target)
	case v.Kind == ViolationMissingNode:
		return fmt.Sprintf("%s is invoked by %q but %q has no definition", v.Target, v.Source, v.Source)
	case v.Direction == "invokes":
		return fmt.Sprintf("%s invokes %q but %q does not list it in invoked_by", v.Source, v.Target, v.Target)
	default:
		return fmt.Sprintf("%s lists %q in invoked_by but %q does not invoke it", v.Target, v.Source, v.Source)
	}
}

// Validate checks that invoked_by is exactly the inverse of invokes across the
// whole graph and that every edge endpoint has a node definition. Intended for
// persisted graphs expected to already carry both directions. All violations
// are collected and returned, sorted by the node they were found on; an empty
// result means the graph is consistent.
func Validate(g *Graph) []Violation {
	var violations []Violation
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		for _, e := range n.Invokes {
			target := g.FindNode(e.Name)
			if target == nil {
				violations = append(violations, Violation{
					Kind: ViolationMissingNode, Source: id, Target: e.Name, Direction: "invokes",
				})
				continue
			}
			if !target.HasInvokedBy(id) {
				violations = append(violations, Violation{
					Kind: ViolationMissingReciprocal, Source: id, Target: e.Name, Direction: "invokes",
				})
			}
		}
		for _, e := range n.InvokedBy {
			source := g.FindNode(e.Name)
			if source == nil {
				violations = append(violations, Violation{
					Kind: ViolationMissingNode, Source: e.Name, Target: id, Direction: "invoked_by",
				})
				continue
			}
			if !source.HasInvoke(id) {
				violations = append(violations, Violation{
					Kind: ViolationMissingReciprocal, Source: e.Name, Target: id, Direction: "invoked_by",
				})
			}
		}
	}
	return violations
}
