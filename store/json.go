// ABOUTME: Atomic save and load for the accumulated invocation graph JSON file.
// ABOUTME: Writes with temp-file + fsync + rename so a crash never leaves a torn graph on disk.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/2389-research/trunkline/graph"
)

// SaveGraph writes the graph to path using an atomic write (write to .tmp,
// fsync, rename). Creates parent directories if they do not exist.
func SaveGraph(path string, g *graph.Graph) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}

	data, err := json.MarshalIndent(g, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp graph file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write graph data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsync graph file: %w", err)
	}
	_ = tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename graph file: %w", err)
	}

	// Fsync the parent directory so the rename itself is durable.
	if dir, err := os.Open(parent); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	return nil
}

// LoadGraph reads a graph JSON file. A missing file returns nil with no
// error, so callers can seed accumulation from scratch.
func LoadGraph(path string) (*graph.Graph, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}

	var g graph.Graph
	if err := json.Unmarshal(contents, &g); err != nil {
		return nil, fmt.Errorf("parse graph file: %w", err)
	}
	return &g, nil
}
