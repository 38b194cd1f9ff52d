// Package store implements the local scan queue: an ordered, bounded,
// durable collection of scan records awaiting synchronization.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/ctellolasalle/RondinLS/internal/agent/prefs"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

// StorageKey is the single key under which the serialized queue lives.
const StorageKey = "localScans"

// DefaultCapacity bounds the queue. Insertion beyond the cap evicts the
// oldest entries, synced or not — lossy retention is accepted.
const DefaultCapacity = 50

// ScanStore holds the records newest-first. It is not safe for concurrent
// use: the agent serializes every mutation behind the syncer's guard.
type ScanStore struct {
	prefs    prefs.Store
	capacity int
	scans    []models.ScanRecord
}

// Open loads the persisted queue. A missing key yields an empty store.
func Open(p prefs.Store, capacity int) (*ScanStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s := &ScanStore{prefs: p, capacity: capacity}

	raw, ok, err := p.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan queue: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.scans); err != nil {
			return nil, fmt.Errorf("corrupt scan queue: %w", err)
		}
	}
	return s, nil
}

// Append inserts rec at the head, truncates to capacity and persists.
func (s *ScanStore) Append(rec models.ScanRecord) error {
	s.scans = append([]models.ScanRecord{rec}, s.scans...)
	if len(s.scans) > s.capacity {
		s.scans = s.scans[:s.capacity]
	}
	return s.Flush()
}

// All returns a copy of the queue in storage order (newest first).
func (s *ScanStore) All() []models.ScanRecord {
	out := make([]models.ScanRecord, len(s.scans))
	copy(out, s.scans)
	return out
}

// PendingIDs returns the local ids of pending records in storage order.
func (s *ScanStore) PendingIDs() []string {
	var ids []string
	for _, rec := range s.scans {
		if rec.SyncStatus == models.SyncPending {
			ids = append(ids, rec.LocalID)
		}
	}
	return ids
}

// Lookup returns the record with the given local id.
func (s *ScanStore) Lookup(localID string) (models.ScanRecord, bool) {
	for _, rec := range s.scans {
		if rec.LocalID == localID {
			return rec, true
		}
	}
	return models.ScanRecord{}, false
}

// MarkStatus updates a record's status in memory only. The syncer calls
// Flush once after a whole drain batch; a crash mid-batch therefore
// leaves attempted records pending, which is safe because the server
// accepts duplicate submissions.
func (s *ScanStore) MarkStatus(localID string, status models.SyncStatus) {
	for i := range s.scans {
		if s.scans[i].LocalID == localID {
			s.scans[i].SyncStatus = status
			return
		}
	}
}

// ResetErrors re-marks every error record as pending (in memory) and
// returns how many were reset. This is the explicit manual-retry action;
// nothing resets error records automatically.
func (s *ScanStore) ResetErrors() int {
	n := 0
	for i := range s.scans {
		if s.scans[i].SyncStatus == models.SyncError {
			s.scans[i].SyncStatus = models.SyncPending
			n++
		}
	}
	return n
}

// CountByStatus reports how many records currently hold status.
func (s *ScanStore) CountByStatus(status models.SyncStatus) int {
	n := 0
	for _, rec := range s.scans {
		if rec.SyncStatus == status {
			n++
		}
	}
	return n
}

// Flush persists the whole queue.
func (s *ScanStore) Flush() error {
	data, err := json.Marshal(s.scans)
	if err != nil {
		return err
	}
	if err := s.prefs.Set(StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist scan queue: %w", err)
	}
	return nil
}
