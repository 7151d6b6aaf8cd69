package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/mailru/easyjson"
	"github.com/royalcat/floodgen/internal/fsutil"
)

//go:generate go tool easyjson progress.go

const FileName = "processing_state.json"

// State is the persisted record of completed work.
//
//easyjson:json
type State struct {
	CurrentRegionIndex     int              `json:"current_region_index"`
	CurrentChunk           string           `json:"current_chunk,omitempty"`
	ProcessedRegionIndices []int            `json:"processed_region_indices"`
	ProcessedChunks        map[int][]string `json:"processed_chunks"`
	StartTime              float64          `json:"start_time"`
}

func (s State) Started() time.Time {
	sec := int64(s.StartTime)
	return time.Unix(sec, int64((s.StartTime-float64(sec))*float64(time.Second)))
}

// CompletedChunks is the total number of completed chunks over all regions.
func (s State) CompletedChunks() int {
	n := 0
	for _, chunks := range s.ProcessedChunks {
		n += len(chunks)
	}
	return n
}

func (s State) clone() State {
	c := s
	c.ProcessedRegionIndices = slices.Clone(s.ProcessedRegionIndices)
	c.ProcessedChunks = make(map[int][]string, len(s.ProcessedChunks))
	for k, v := range s.ProcessedChunks {
		c.ProcessedChunks[k] = slices.Clone(v)
	}
	return c
}

// Store keeps State in memory and rewrites the file after every mutation.
// The pipeline is the single writer; the mutex lets readers like the status
// server take snapshots.
type Store struct {
	path string

	mu    sync.RWMutex
	state State
	done  map[int]map[string]struct{}
}

// Open loads the state file at path when resume is set and the file exists,
// otherwise it starts fresh at startRegion. A fresh state is not written until
// the first mutation.
func Open(path string, resume bool, startRegion int) (*Store, error) {
	if resume {
		state, err := Read(path)
		if err == nil {
			return newStore(path, state), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	now := time.Now()
	return newStore(path, State{
		CurrentRegionIndex:     startRegion,
		ProcessedRegionIndices: []int{},
		ProcessedChunks:        map[int][]string{},
		StartTime:              float64(now.UnixNano()) / float64(time.Second),
	}), nil
}

// Read parses a state file without taking ownership of it.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := easyjson.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("error parsing progress file %s: %w", path, err)
	}
	if state.ProcessedChunks == nil {
		state.ProcessedChunks = map[int][]string{}
	}
	if state.ProcessedRegionIndices == nil {
		state.ProcessedRegionIndices = []int{}
	}
	return state, nil
}

func newStore(path string, state State) *Store {
	done := make(map[int]map[string]struct{}, len(state.ProcessedChunks))
	for region, chunks := range state.ProcessedChunks {
		set := make(map[string]struct{}, len(chunks))
		for _, c := range chunks {
			set[c] = struct{}{}
		}
		done[region] = set
	}
	return &Store{path: path, state: state, done: done}
}

func (s *Store) Path() string {
	return s.path
}

// BeginChunk records the chunk about to be fetched.
func (s *Store) BeginChunk(region int, chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentRegionIndex = region
	s.state.CurrentChunk = chunk
	return s.save()
}

// CompleteChunk marks the chunk as fully written. Marking it twice is a no-op
// apart from the write.
func (s *Store) CompleteChunk(region int, chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentRegionIndex = region
	s.state.CurrentChunk = chunk

	set, ok := s.done[region]
	if !ok {
		set = map[string]struct{}{}
		s.done[region] = set
	}
	if _, ok := set[chunk]; !ok {
		set[chunk] = struct{}{}
		s.state.ProcessedChunks[region] = append(s.state.ProcessedChunks[region], chunk)
	}
	return s.save()
}

// CompleteRegion advances to the next region.
func (s *Store) CompleteRegion(region int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.state.ProcessedRegionIndices, region) {
		s.state.ProcessedRegionIndices = append(s.state.ProcessedRegionIndices, region)
	}
	s.state.CurrentRegionIndex = region + 1
	s.state.CurrentChunk = ""
	return s.save()
}

func (s *Store) IsChunkDone(region int, chunk string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.done[region][chunk]
	return ok
}

func (s *Store) CurrentRegion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentRegionIndex
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Delete removes the state file. A missing file is not an error.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) save() error {
	data, err := easyjson.Marshal(s.state)
	if err != nil {
		return err
	}
	if err := fsutil.WriteBytesAtomic(s.path, data); err != nil {
		return fmt.Errorf("error saving progress: %w", err)
	}
	return nil
}
