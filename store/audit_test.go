// ABOUTME: Tests for the JSONL run audit log.
// ABOUTME: Covers round-trip, run id assignment, empty file, repair, and crash safety.
package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/trunkline/store"
)

func makeRecord(command string, passes int) store.RunRecord {
	started := time.Now().UTC().Add(-time.Second)
	return store.RunRecord{
		Command:    command,
		Account:    "prod",
		Templates:  []string{"stack.yaml"},
		Passes:     passes,
		Nodes:      4,
		Edges:      3,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestAuditAppendAndReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")

	log, err := store.OpenAudit(path)
	if err != nil {
		t.Fatalf("OpenAudit: %v", err)
	}
	defer func() { _ = log.Close() }()

	r1 := makeRecord("parse", 1)
	r2 := makeRecord("parse", 2)
	r3 := makeRecord("derive", 0)

	for _, r := range []*store.RunRecord{&r1, &r2, &r3} {
		if err := log.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := store.ReplayAudit(path)
	if err != nil {
		t.Fatalf("ReplayAudit: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Command != "parse" || records[0].Passes != 1 {
		t.Errorf("records[0] = %+v, want parse/1", records[0])
	}
	if records[2].Command != "derive" {
		t.Errorf("records[2].Command = %q, want derive", records[2].Command)
	}
}

func TestAuditAssignsRunID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")

	log, err := store.OpenAudit(path)
	if err != nil {
		t.Fatalf("OpenAudit: %v", err)
	}
	defer func() { _ = log.Close() }()

	r := makeRecord("parse", 1)
	if err := log.Append(&r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if r.RunID == "" {
		t.Fatal("Append did not assign a run id")
	}

	r2 := makeRecord("parse", 1)
	r2.RunID = "preset"
	if err := log.Append(&r2); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := store.ReplayAudit(path)
	if err != nil {
		t.Fatalf("ReplayAudit: %v", err)
	}
	if records[0].RunID != r.RunID {
		t.Errorf("records[0].RunID = %q, want %q", records[0].RunID, r.RunID)
	}
	if records[1].RunID != "preset" {
		t.Errorf("records[1].RunID = %q, want preset", records[1].RunID)
	}
}

func TestAuditReplayEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.jsonl")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = f.Close()

	records, err := store.ReplayAudit(path)
	if err != nil {
		t.Fatalf("ReplayAudit: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}
}

func TestAuditRepairTruncatesPartialLastLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")

	log, err := store.OpenAudit(path)
	if err != nil {
		t.Fatalf("OpenAudit: %v", err)
	}
	r := makeRecord("parse", 1)
	if err := log.Append(&r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_ = log.Close()

	// Simulate a crash mid-write: append a partial JSON line.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString(`{"run_id": "trunc`); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	_ = f.Close()

	count, err := store.RepairAudit(path)
	if err != nil {
		t.Fatalf("RepairAudit: %v", err)
	}
	if count != 1 {
		t.Errorf("repair kept %d records, want 1", count)
	}

	records, err := store.ReplayAudit(path)
	if err != nil {
		t.Fatalf("ReplayAudit after repair: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after repair, got %d", len(records))
	}
	if records[0].RunID != r.RunID {
		t.Errorf("surviving record id = %q, want %q", records[0].RunID, r.RunID)
	}
}

func TestNewRunIDsAreUniqueAndSortable(t *testing.T) {
	a := store.NewRunID()
	b := store.NewRunID()
	if a == b {
		t.Error("consecutive run ids should differ")
	}
	if len(a) != 26 {
		t.Errorf("run id length = %d, want 26", len(a))
	}
}
