package progress_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/royalcat/floodgen/progress"
)

func TestFreshState(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)

	s, err := progress.Open(path, false, 3)
	if err != nil {
		t.Fatal(err)
	}
	if s.CurrentRegion() != 3 {
		t.Fatalf("expected start region 3, got %d", s.CurrentRegion())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("fresh state should not be written before the first mutation")
	}
}

func TestResumeRestoresState(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)

	s, err := progress.Open(path, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	steps := []error{
		s.CompleteChunk(0, "4.0_57.5"),
		s.CompleteRegion(0),
		s.BeginChunk(1, "10.0_60.0"),
		s.CompleteChunk(1, "10.0_60.0"),
		s.CompleteChunk(1, "10.0_60.0"),
		s.BeginChunk(1, "10.5_60.0"),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	resumed, err := progress.Open(path, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	state := resumed.Snapshot()

	if state.CurrentRegionIndex != 1 || state.CurrentChunk != "10.5_60.0" {
		t.Fatalf("unexpected position %d/%s", state.CurrentRegionIndex, state.CurrentChunk)
	}
	if len(state.ProcessedRegionIndices) != 1 || state.ProcessedRegionIndices[0] != 0 {
		t.Fatalf("unexpected processed regions %v", state.ProcessedRegionIndices)
	}
	if got := state.ProcessedChunks[1]; len(got) != 1 || got[0] != "10.0_60.0" {
		t.Fatalf("unexpected processed chunks %v", got)
	}
	if !resumed.IsChunkDone(1, "10.0_60.0") {
		t.Fatalf("completed chunk not restored")
	}
	if resumed.IsChunkDone(1, "10.5_60.0") {
		t.Fatalf("in-flight chunk must not count as done")
	}
	if resumed.IsChunkDone(0, "10.0_60.0") {
		t.Fatalf("chunk ids are per region")
	}
}

func TestResumeWithoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)

	s, err := progress.Open(path, true, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s.CurrentRegion() != 2 {
		t.Fatalf("expected fresh state at region 2, got %d", s.CurrentRegion())
	}
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)

	s, err := progress.Open(path, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteChunk(4, "12.5_65.0"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"current_region_index", "current_chunk", "processed_region_indices", "processed_chunks", "start_time"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}

	var chunks map[string][]string
	if err := json.Unmarshal(raw["processed_chunks"], &chunks); err != nil {
		t.Fatal(err)
	}
	if len(chunks["4"]) != 1 || chunks["4"][0] != "12.5_65.0" {
		t.Fatalf("unexpected processed_chunks %s", raw["processed_chunks"])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, err := progress.Open(filepath.Join(t.TempDir(), progress.FileName), false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteChunk(0, "a"); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	snap.ProcessedChunks[0][0] = "changed"
	if !s.IsChunkDone(0, "a") || s.Snapshot().ProcessedChunks[0][0] != "a" {
		t.Fatalf("snapshot shares memory with the store")
	}
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)
	s, err := progress.Open(path, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteRegion(0); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("state file still present")
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("deleting twice should succeed: %v", err)
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := progress.Open(path, true, 0); err == nil {
		t.Fatalf("expected an error for a corrupt progress file")
	}
}

func TestReadForeignStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), progress.FileName)
	data := `{
  "current_region_index": 2,
  "current_chunk": null,
  "processed_region_indices": [0, 1],
  "processed_chunks": {"0": ["4.0_57.5"], "2": ["10.0_60.0", "10.5_60.0"]},
  "start_time": 1760000000.25,
  "note": {"written_by": "another tool"}
}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	state, err := progress.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if state.CurrentRegionIndex != 2 || state.CurrentChunk != "" {
		t.Fatalf("unexpected position %d/%q", state.CurrentRegionIndex, state.CurrentChunk)
	}
	if len(state.ProcessedRegionIndices) != 2 || state.CompletedChunks() != 3 {
		t.Fatalf("unexpected progress %+v", state)
	}
	if got := state.ProcessedChunks[2]; len(got) != 2 || got[1] != "10.5_60.0" {
		t.Fatalf("unexpected chunks for region 2: %v", got)
	}
	if state.Started().Unix() != 1760000000 {
		t.Fatalf("unexpected start time %v", state.Started())
	}

	if err := os.WriteFile(path, []byte(`{"processed_chunks": {"x": []}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := progress.Read(path); err == nil {
		t.Fatalf("expected error for non-numeric region key")
	}
}
