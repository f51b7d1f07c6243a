// ABOUTME: SQLite-backed index for fast graph queries without loading the full JSON file.
// ABOUTME: Always rebuildable from the graph; serves as a queryable cache, not the source of truth.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/trunkline/graph"
)

// NodeRow is a node summary for list and filter queries.
type NodeRow struct {
	Name           string
	Type           string
	AccountName    string
	InvokeCount    int
	InvokedByCount int
}

// EdgeRow is one invocation edge with its target metadata snapshot.
type EdgeRow struct {
	Source        string
	Target        string
	TargetType    string
	TargetAccount string
}

// SqliteIndex is a SQLite-backed index mirroring the accumulated graph for
// fast reads. The JSON graph file remains the source of truth; the index is
// rebuilt from it whenever the graph changes.
type SqliteIndex struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite index database at the given path.
// Runs migrations to ensure the schema is up to date.
func OpenSqlite(path string) (*SqliteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			name TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			account_name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS edges (
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_account TEXT NOT NULL,
			PRIMARY KEY (source, target),
			FOREIGN KEY (source) REFERENCES nodes(name)
		);

		CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteIndex{db: db}, nil
}

// Close closes the SQLite database connection.
func (idx *SqliteIndex) Close() error {
	return idx.db.Close()
}

// Rebuild clears the index and repopulates it from the graph inside a single
// transaction, so readers never observe a half-built index. Only the invokes
// direction is stored; the reciprocal direction is a query.
func (idx *SqliteIndex) Rebuild(g *graph.Graph) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM edges"); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM nodes"); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}

	for _, name := range g.NodeIDs() {
		node := g.FindNode(name)
		if _, err := tx.Exec(
			"INSERT INTO nodes (name, type, account_name) VALUES (?, ?, ?)",
			name, node.Type, node.AccountName); err != nil {
			return fmt.Errorf("insert node %s: %w", name, err)
		}
	}
	for _, name := range g.NodeIDs() {
		node := g.FindNode(name)
		for _, edge := range node.Invokes {
			if _, err := tx.Exec(
				`INSERT INTO edges (source, target, target_type, target_account)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(source, target) DO NOTHING`,
				name, edge.Name, edge.Type, edge.AccountName); err != nil {
				return fmt.Errorf("insert edge %s->%s: %w", name, edge.Name, err)
			}
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES ('indexed_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("set indexed_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

// NodeCount returns the number of indexed nodes.
func (idx *SqliteIndex) NodeCount() (int, error) {
	var n int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// EdgeCount returns the number of indexed invocation edges.
func (idx *SqliteIndex) EdgeCount() (int, error) {
	var n int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&n); err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return n, nil
}

// ListNodes returns every node with its edge counts, ordered by name.
func (idx *SqliteIndex) ListNodes() ([]NodeRow, error) {
	return idx.queryNodes(
		`SELECT n.name, n.type, n.account_name,
			(SELECT COUNT(*) FROM edges e WHERE e.source = n.name),
			(SELECT COUNT(*) FROM edges e WHERE e.target = n.name)
		 FROM nodes n ORDER BY n.name`)
}

// Search returns nodes whose name contains the given substring, ordered by
// name.
func (idx *SqliteIndex) Search(term string) ([]NodeRow, error) {
	return idx.queryNodes(
		`SELECT n.name, n.type, n.account_name,
			(SELECT COUNT(*) FROM edges e WHERE e.source = n.name),
			(SELECT COUNT(*) FROM edges e WHERE e.target = n.name)
		 FROM nodes n WHERE n.name LIKE ? ORDER BY n.name`,
		"%"+term+"%")
}

// FilterByType returns nodes with the given display type, ordered by name.
func (idx *SqliteIndex) FilterByType(displayType string) ([]NodeRow, error) {
	return idx.queryNodes(
		`SELECT n.name, n.type, n.account_name,
			(SELECT COUNT(*) FROM edges e WHERE e.source = n.name),
			(SELECT COUNT(*) FROM edges e WHERE e.target = n.name)
		 FROM nodes n WHERE n.type = ? ORDER BY n.name`,
		displayType)
}

// FilterByAccount returns nodes with the given account label, ordered by
// name.
func (idx *SqliteIndex) FilterByAccount(account string) ([]NodeRow, error) {
	return idx.queryNodes(
		`SELECT n.name, n.type, n.account_name,
			(SELECT COUNT(*) FROM edges e WHERE e.source = n.name),
			(SELECT COUNT(*) FROM edges e WHERE e.target = n.name)
		 FROM nodes n WHERE n.account_name = ? ORDER BY n.name`,
		account)
}

// TopInvoked returns the most-invoked nodes, highest incoming edge count
// first, ties broken by name.
func (idx *SqliteIndex) TopInvoked(limit int) ([]NodeRow, error) {
	return idx.queryNodes(
		`SELECT n.name, n.type, n.account_name,
			(SELECT COUNT(*) FROM edges e WHERE e.source = n.name) AS outgoing,
			(SELECT COUNT(*) FROM edges e WHERE e.target = n.name) AS incoming
		 FROM nodes n ORDER BY incoming DESC, n.name LIMIT ?`,
		limit)
}

func (idx *SqliteIndex) queryNodes(query string, args ...any) ([]NodeRow, error) {
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []NodeRow
	for rows.Next() {
		var n NodeRow
		if err := rows.Scan(&n.Name, &n.Type, &n.AccountName, &n.InvokeCount, &n.InvokedByCount); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Invokes returns the outgoing edges of a node, ordered by target.
func (idx *SqliteIndex) Invokes(name string) ([]EdgeRow, error) {
	return idx.queryEdges(
		`SELECT source, target, target_type, target_account
		 FROM edges WHERE source = ? ORDER BY target`, name)
}

// InvokedBy returns the incoming edges of a node, ordered by source.
func (idx *SqliteIndex) InvokedBy(name string) ([]EdgeRow, error) {
	return idx.queryEdges(
		`SELECT source, target, target_type, target_account
		 FROM edges WHERE target = ? ORDER BY source`, name)
}

func (idx *SqliteIndex) queryEdges(query string, args ...any) ([]EdgeRow, error) {
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.Source, &e.Target, &e.TargetType, &e.TargetAccount); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// IndexedAt returns when the index was last rebuilt. Returns false if the
// index has never been built.
func (idx *SqliteIndex) IndexedAt() (time.Time, bool, error) {
	var val string
	err := idx.db.QueryRow("SELECT value FROM meta WHERE key = 'indexed_at'").Scan(&val)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query indexed_at: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse indexed_at: %w", err)
	}
	return ts, true, nil
}
