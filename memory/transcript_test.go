package memory_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/petasbytes/spec-planner/memory"
)

func TestTranscript_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "runs", "transcript.json")

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	in := memory.Transcript{
		ThreadID: "thread_1",
		RunID:    "run_1",
		Status:   "completed",
		Polls:    4,
		Calls: []memory.Call{
			{CallID: "call_a", Tool: "create_github_task", Title: "Login", Output: "Success: 202", Result: "success"},
			{CallID: "call_b", Tool: "other", Output: `Error: unsupported tool "other"`, Result: "unsupported"},
		},
		StartedAt:  start,
		FinishedAt: start.Add(8 * time.Second),
	}
	if err := memory.SaveTranscript(p, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := memory.LoadTranscript(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out == nil {
		t.Fatal("expected transcript")
	}
	if diff := cmp.Diff(in, *out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTranscript_NoCalls_WritesEmptyArray(t *testing.T) {
	p := filepath.Join(t.TempDir(), "t.json")
	if err := memory.SaveTranscript(p, memory.Transcript{RunID: "run_1", Status: "failed", LastError: "server_error: boom"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"calls": []`) {
		t.Fatalf("expected empty calls array, got:\n%s", b)
	}
}

func TestTranscript_LoadMissing_ReturnsNil(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "does-not-exist.json")

	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected missing file in tempdir")
	}

	tr, err := memory.LoadTranscript(p)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if tr != nil {
		t.Fatalf("expected nil for missing file, got %#v", tr)
	}
}

func TestTranscript_LoadInvalidJSON_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(p, []byte("{oops"), 0o664); err != nil {
		t.Fatalf("prep: %v", err)
	}
	if _, err := memory.LoadTranscript(p); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
