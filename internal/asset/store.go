package asset

import (
	"sync"
	"time"
)

// Store is the concurrency-safe contract for asset state. Transitions out of
// processing are compare-and-swap on the generation: a call carrying a stale
// generation returns false and changes nothing, which is how a superseded
// worker learns to discard its output.
type Store interface {
	// Get returns the asset for lessonID. ok is false if no upload was ever
	// recorded; callers treat that as StatusAbsent.
	Get(lessonID int64) (Asset, bool, error)

	// BeginProcessing bumps the generation, records the new temp source and
	// sets status processing. It returns the generation the caller's worker
	// must publish against.
	BeginProcessing(lessonID int64, sourcePath string) (generation int64, err error)

	// CompleteProcessing marks the asset ready with the published paths,
	// provided generation is still current.
	CompleteProcessing(lessonID, generation int64, pub Published) (bool, error)

	// FailProcessing marks the asset failed with reason, provided generation
	// is still current.
	FailProcessing(lessonID, generation int64, reason string) (bool, error)

	// Reset removes all record of the asset (explicit video deletion).
	Reset(lessonID int64) error
}

// MemoryStore is an in-memory Store guarded by a mutex.
type MemoryStore struct {
	mu     sync.Mutex
	assets map[int64]Asset
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory asset store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[int64]Asset)}
}

func (s *MemoryStore) Get(lessonID int64) (Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[lessonID]
	return a, ok, nil
}

func (s *MemoryStore) BeginProcessing(lessonID int64, sourcePath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.assets[lessonID]
	a.LessonID = lessonID
	a.Generation++
	a.Status = StatusProcessing
	a.SourcePath = sourcePath
	a.OutputDir = ""
	a.ManifestPath = ""
	a.KeyPath = ""
	a.Error = ""
	a.UpdatedAt = time.Now().UTC()
	s.assets[lessonID] = a
	return a.Generation, nil
}

func (s *MemoryStore) CompleteProcessing(lessonID, generation int64, pub Published) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[lessonID]
	if !ok || a.Generation != generation {
		return false, nil
	}
	a.Status = StatusReady
	a.SourcePath = ""
	a.OutputDir = pub.OutputDir
	a.ManifestPath = pub.ManifestPath
	a.KeyPath = pub.KeyPath
	a.DurationSeconds = pub.DurationSeconds
	a.SizeBytes = pub.SizeBytes
	a.Error = ""
	a.UpdatedAt = time.Now().UTC()
	s.assets[lessonID] = a
	return true, nil
}

func (s *MemoryStore) FailProcessing(lessonID, generation int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[lessonID]
	if !ok || a.Generation != generation {
		return false, nil
	}
	a.Status = StatusFailed
	a.Error = reason
	a.UpdatedAt = time.Now().UTC()
	s.assets[lessonID] = a
	return true, nil
}

func (s *MemoryStore) Reset(lessonID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, lessonID)
	return nil
}
