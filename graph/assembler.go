// ABOUTME: Assembler accumulates one template pass's nodes and edges before finalizing a Graph snapshot.
// ABOUTME: Guarantees edge sources are tracked nodes and pseudo-node creation is idempotent against the accumulated graph.
package graph

import (
	"fmt"
	"sort"
)

// Assembler owns the node and edge accumulation for a single template pass.
// It guarantees that every edge's source is a node tracked by the pass
// (declared or pseudo), and that pseudo-node creation consults the accumulated
// graph from prior passes so repeated passes never redefine a pseudo-node's
// metadata. Finalize materializes an immutable Graph snapshot for merging.
type Assembler struct {
	account     string
	accumulated *Graph
	types       map[string]string
	accounts    map[string]string
	invokes     map[string]map[string]struct{}
	finalized   bool
}

// NewAssembler creates an assembler for one template pass. accumulated is the
// graph merged from prior passes (may be nil or empty for the first pass) and
// account is the label of the account that owns this template's resources.
func NewAssembler(accumulated *Graph, account string) *Assembler {
	if accumulated == nil {
		accumulated = New()
	}
	return &Assembler{
		account:     account,
		accumulated: accumulated,
		types:       make(map[string]string),
		accounts:    make(map[string]string),
		invokes:     make(map[string]map[string]struct{}),
	}
}

// DeclareResource registers a template-declared resource with its display
// type. Declared resources always belong to the pass's account. Declaring an
// identifier that was previously created as a pseudo-node overwrites the
// pseudo metadata; the declaration is the more authoritative source.
func (a *Assembler) DeclareResource(id, displayType string) {
	a.types[id] = displayType
	a.accounts[id] = a.account
	if a.invokes[id] == nil {
		a.invokes[id] = make(map[string]struct{})
	}
}

// EnsurePseudo registers a pseudo-node for an external principal if the
// identifier is not already tracked. When the accumulated graph from prior
// passes already defines the identifier, its existing metadata is carried
// into this pass instead of the supplied values. Returns true only when a
// brand-new pseudo-node was created.
func (a *Assembler) EnsurePseudo(id, displayType, account string) bool {
	if _, ok := a.types[id]; ok {
		return false
	}
	if prior := a.accumulated.FindNode(id); prior != nil {
		a.types[id] = prior.Type
		a.accounts[id] = prior.AccountName
	} else {
		a.types[id] = displayType
		a.accounts[id] = account
	}
	if a.invokes[id] == nil {
		a.invokes[id] = make(map[string]struct{})
	}
	return a.accumulated.FindNode(id) == nil
}

// Tracked reports whether the identifier is a node in the current pass.
func (a *Assembler) Tracked(id string) bool {
	_, ok := a.types[id]
	return ok
}

// AddEdge records a directed invokes edge. The source must already be tracked
// by this pass; an untracked source is a programming error in the calling
// rule. Targets need not be tracked: an untracked target is finalized with
// sentinel metadata rather than dropped.
func (a *Assembler) AddEdge(source, target string) error {
	if a.finalized {
		return fmt.Errorf("add edge %s -> %s: assembler already finalized", source, target)
	}
	if _, ok := a.types[source]; !ok {
		return fmt.Errorf("add edge %s -> %s: source is not tracked by this pass", source, target)
	}
	a.invokes[source][target] = struct{}{}
	return nil
}

// Finalize materializes the pass into a Graph. Edge metadata is snapshotted
// from the pass's own nodes; targets the pass does not track get the
// Unknown/External sentinel pair. The assembler must not be used afterwards.
func (a *Assembler) Finalize() *Graph {
	a.finalized = true
	g := New()
	ids := make([]string, 0, len(a.types))
	for id := range a.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := &Node{
			Type:        a.types[id],
			AccountName: a.accounts[id],
			Invokes:     []Edge{},
			InvokedBy:   []Edge{},
		}
		targets := make([]string, 0, len(a.invokes[id]))
		for t := range a.invokes[id] {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			if tType, ok := a.types[t]; ok {
				node.Invokes = append(node.Invokes, Edge{Name: t, Type: tType, AccountName: a.accounts[t]})
			} else {
				node.Invokes = append(node.Invokes, Edge{Name: t, Type: ExternalType, AccountName: UnknownMeta})
			}
		}
		node.normalize()
		g.AddNode(id, node)
	}
	return g
}
