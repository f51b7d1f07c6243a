// ABOUTME: Core invocation graph model: nodes keyed by identifier, with invokes and invoked_by edge sets.
// ABOUTME: Marshals to a deterministic JSON mapping (sorted identifiers, edges sorted by name) for stable output.
package graph

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Metadata sentinels. A node or edge whose type or account label could not be
// resolved carries one of these instead of an empty string.
const (
	// UnknownMeta marks node or edge metadata that has not been resolved yet.
	UnknownMeta = "Unknown"
	// ExternalType marks an edge whose target is not defined in any parsed template.
	ExternalType = "Unknown/External"
	// ServiceAccount is the account label assigned to service pseudo-nodes.
	ServiceAccount = "AWS"
)

// Edge is a directed relationship to (or from) another identifier. Type and
// AccountName are a display snapshot of the far end taken when the edge was
// materialized; the canonical identity of an edge is Name alone.
type Edge struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	AccountName string `json:"account_name"`
}

// Node is one resource (declared or pseudo) in the invocation graph.
type Node struct {
	Type        string `json:"type"`
	AccountName string `json:"account_name"`
	Invokes     []Edge `json:"invokes"`
	InvokedBy   []Edge `json:"invoked_by"`
}

// Graph maps identifiers to nodes. Identifiers cover both template-declared
// logical IDs and synthesized pseudo-nodes for external service principals;
// they share one namespace.
type Graph struct {
	Nodes map[string]*Node
}

// New returns an empty graph ready to accept nodes.
func New() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode inserts (or replaces) the node stored under id, initializing the
// Nodes map if needed.
func (g *Graph) AddNode(id string, n *Node) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.Nodes[id] = n
}

// FindNode returns the node with the given identifier, or nil if not found.
func (g *Graph) FindNode(id string) *Node {
	if g.Nodes == nil {
		return nil
	}
	return g.Nodes[id]
}

// HasNode reports whether the identifier is defined in the graph.
func (g *Graph) HasNode(id string) bool {
	return g.FindNode(id) != nil
}

// NodeIDs returns all identifiers in sorted order for deterministic output.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// EdgeCount returns the total number of invokes edges across all nodes.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.Nodes {
		total += len(n.Invokes)
	}
	return total
}

// Clone returns a deep copy of the graph. Mutating the copy never affects the
// original.
func (g *Graph) Clone() *Graph {
	out := New()
	for id, n := range g.Nodes {
		out.Nodes[id] = n.Clone()
	}
	return out
}

// SortEdges orders every node's invokes and invoked_by lists by target name.
func (g *Graph) SortEdges() {
	for _, n := range g.Nodes {
		sortEdges(n.Invokes)
		sortEdges(n.InvokedBy)
	}
}

// normalize fills in sentinel metadata and replaces nil edge slices with empty
// ones so serialized output always carries all four fields.
func (g *Graph) normalize() {
	for _, n := range g.Nodes {
		n.normalize()
	}
}

// MarshalJSON serializes the graph as a JSON object keyed by identifier, with
// identifiers in sorted order and each node's edge lists sorted by name.
// Repeated marshals of an unchanged graph are byte-identical.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range g.NodeIDs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		nodeJSON, err := json.Marshal(g.Nodes[id].sortedView())
		if err != nil {
			return nil, err
		}
		buf.Write(nodeJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keyed by identifier, normalizing missing
// metadata to sentinels and nil edge lists to empty ones.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var nodes map[string]*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	if nodes == nil {
		nodes = make(map[string]*Node)
	}
	g.Nodes = nodes
	g.normalize()
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := &Node{
		Type:        n.Type,
		AccountName: n.AccountName,
		Invokes:     make([]Edge, len(n.Invokes)),
		InvokedBy:   make([]Edge, len(n.InvokedBy)),
	}
	copy(out.Invokes, n.Invokes)
	copy(out.InvokedBy, n.InvokedBy)
	return out
}

// FindInvoke returns a pointer to the invokes edge targeting name, or nil.
func (n *Node) FindInvoke(name string) *Edge {
	return findEdge(n.Invokes, name)
}

// HasInvoke reports whether the node has an invokes edge targeting name.
func (n *Node) HasInvoke(name string) bool {
	return n.FindInvoke(name) != nil
}

// AddInvoke appends the edge unless an edge to the same target already exists.
// Returns true if the edge was added.
func (n *Node) AddInvoke(e Edge) bool {
	if n.HasInvoke(e.Name) {
		return false
	}
	n.Invokes = append(n.Invokes, e)
	return true
}

// FindInvokedBy returns a pointer to the invoked_by edge from name, or nil.
func (n *Node) FindInvokedBy(name string) *Edge {
	return findEdge(n.InvokedBy, name)
}

// HasInvokedBy reports whether the node has an invoked_by edge from name.
func (n *Node) HasInvokedBy(name string) bool {
	return n.FindInvokedBy(name) != nil
}

// AddInvokedBy appends the edge unless an entry from the same source already
// exists. Returns true if the edge was added.
func (n *Node) AddInvokedBy(e Edge) bool {
	if n.HasInvokedBy(e.Name) {
		return false
	}
	n.InvokedBy = append(n.InvokedBy, e)
	return true
}

func (n *Node) normalize() {
	if n.Type == "" {
		n.Type = UnknownMeta
	}
	if n.AccountName == "" {
		n.AccountName = UnknownMeta
	}
	if n.Invokes == nil {
		n.Invokes = []Edge{}
	}
	if n.InvokedBy == nil {
		n.InvokedBy = []Edge{}
	}
}

// sortedView returns a value copy with sorted, non-nil edge lists for
// marshaling without mutating the receiver.
func (n *Node) sortedView() Node {
	c := n.Clone()
	c.normalize()
	sortEdges(c.Invokes)
	sortEdges(c.InvokedBy)
	return *c
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].Name < edges[j].Name })
}

func findEdge(edges []Edge, name string) *Edge {
	for i := range edges {
		if edges[i].Name == name {
			return &edges[i]
		}
	}
	return nil
}
