// ABOUTME: Merge folds a freshly assembled graph into an accumulated one with set-union edge semantics.
// ABOUTME: Node and edge metadata is overwritten field-wise only by non-sentinel values (last non-sentinel wins).
package graph

// Merge combines base with incoming and returns a new graph; neither input is
// mutated. Identifiers absent from base are inserted as deep copies. For
// identifiers present in both, invokes edges are unioned by target name, and
// node and edge metadata fields are overwritten only when the incoming value
// is not a sentinel.
//
// The field-wise rule makes Merge idempotent (Merge(g, g) is equal to g) and
// associative. When the same target carries conflicting non-sentinel metadata
// across templates, the value merged last wins; processing order is therefore
// the one documented source of non-determinism for callers that feed
// conflicting inputs.
//
// invoked_by lists are not merged: they are derived from the complete graph
// by DeriveInvokedBy after all merges, since edges added later can target
// nodes merged earlier.
func Merge(base, incoming *Graph) *Graph {
	merged := base.Clone()
	for _, id := range incoming.NodeIDs() {
		in := incoming.Nodes[id]
		cur := merged.FindNode(id)
		if cur == nil {
			merged.AddNode(id, in.Clone())
			continue
		}
		for _, e := range in.Invokes {
			if existing := cur.FindInvoke(e.Name); existing != nil {
				existing.Type = moreSpecific(existing.Type, e.Type)
				existing.AccountName = moreSpecific(existing.AccountName, e.AccountName)
			} else {
				cur.AddInvoke(e)
			}
		}
		cur.Type = moreSpecific(cur.Type, in.Type)
		cur.AccountName = moreSpecific(cur.AccountName, in.AccountName)
	}
	merged.normalize()
	merged.SortEdges()
	return merged
}

// moreSpecific keeps cur unless incoming carries real information. Empty
// strings and the Unknown and Unknown/External sentinels never overwrite an
// existing value.
func moreSpecific(cur, incoming string) string {
	if incoming == "" || incoming == UnknownMeta || incoming == ExternalType {
		return cur
	}
	return incoming
}
