// ABOUTME: Canonical JSON export of the invocation graph.
// ABOUTME: Output is byte-stable across runs: sorted node keys, sorted edges, fixed indentation.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/2389-research/trunkline/graph"
)

// JSON renders the graph as indented, deterministically ordered JSON with a
// trailing newline.
func JSON(g *graph.Graph) ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return append(data, '\n'), nil
}
