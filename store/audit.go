// ABOUTME: Append-only JSONL audit log recording every extraction run.
// ABOUTME: Provides crash-safe append, sequential replay, and repair for truncated files.
package store

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunRecord is one audit log entry describing a completed extraction run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	Account    string    `json:"account"`
	Templates  []string  `json:"templates"`
	Passes     int       `json:"passes"`
	Failures   []string  `json:"failures,omitempty"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRunID generates a ULID run identifier using crypto/rand entropy.
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// AuditLog is an append-only JSONL log backed by a file. Each line is a
// single JSON-serialized RunRecord followed by a newline.
type AuditLog struct {
	path string
	file *os.File
}

// OpenAudit opens (or creates) an audit log file at the given path.
// Creates parent directories if they do not exist.
// The file is opened in append mode.
func OpenAudit(path string) (*AuditLog, error) {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create parent dirs: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	return &AuditLog{path: path, file: file}, nil
}

// Path returns the path to the underlying audit file.
func (l *AuditLog) Path() string {
	return l.path
}

// Append serializes a record as one JSON line, writes it with a trailing
// newline, and fsyncs to disk. A missing RunID is assigned before writing.
func (l *AuditLog) Append(record *RunRecord) error {
	if record.RunID == "" {
		record.RunID = NewRunID()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	line := append(data, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("write record line: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}

	return nil
}

// Close closes the underlying file.
func (l *AuditLog) Close() error {
	return l.file.Close()
}

// ReplayAudit reads all run records from an audit file, returning them in
// order. Empty lines are skipped. Returns an empty slice for empty files.
func ReplayAudit(path string) ([]RunRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit for replay: %w", err)
	}
	defer func() { _ = file.Close() }()

	var records []RunRecord
	scanner := bufio.NewScanner(file)
	// Increase scanner buffer for runs over large template sets.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record RunRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("parse record line: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit file: %w", err)
	}

	return records, nil
}

// RepairAudit repairs a potentially corrupted audit file by keeping only
// complete, parseable lines and truncating any partial trailing data.
// Uses atomic temp-file + fsync + rename to prevent data loss on crash.
// Returns the count of valid records retained.
func RepairAudit(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open audit for repair: %w", err)
	}

	var validLines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record RunRecord
		if json.Unmarshal([]byte(line), &record) == nil {
			validLines = append(validLines, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		_ = file.Close()
		return 0, fmt.Errorf("scan audit for repair: %w", err)
	}
	_ = file.Close()

	count := len(validLines)

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	for _, line := range validLines {
		if _, err := fmt.Fprintln(tmpFile, line); err != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("write valid line: %w", err)
		}
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("fsync temp file: %w", err)
	}
	_ = tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("rename temp to original: %w", err)
	}

	// Fsync the parent directory to ensure the rename metadata is durable.
	parent := filepath.Dir(path)
	if dir, err := os.Open(parent); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	return count, nil
}
