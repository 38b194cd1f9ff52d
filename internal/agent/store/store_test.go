package store

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctellolasalle/RondinLS/internal/agent/prefs"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

func newTestStore(t *testing.T, capacity int) (*ScanStore, prefs.Store) {
	t.Helper()
	kv := prefs.NewFileStore(filepath.Join(t.TempDir(), "agent.json"))
	s, err := Open(kv, capacity)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s, kv
}

func record(localID string, siteID int) models.ScanRecord {
	return models.ScanRecord{
		LocalID:    localID,
		SiteID:     siteID,
		OperatorID: 7,
		Fecha:      "2025-08-18 01:00:00",
		SyncStatus: models.SyncPending,
	}
}

func TestAppendNewestFirst(t *testing.T) {
	s, _ := newTestStore(t, DefaultCapacity)

	for i := 1; i <= 3; i++ {
		if err := s.Append(record(fmt.Sprintf("r%d", i), i)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].SiteID != 3 || all[2].SiteID != 1 {
		t.Fatalf("order not newest-first: %v, %v", all[0].SiteID, all[2].SiteID)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s, _ := newTestStore(t, DefaultCapacity)

	for i := 1; i <= DefaultCapacity+1; i++ {
		if err := s.Append(record(fmt.Sprintf("r%d", i), i)); err != nil {
			t.Fatal(err)
		}
	}

	all := s.All()
	if len(all) != DefaultCapacity {
		t.Fatalf("len = %d, want %d", len(all), DefaultCapacity)
	}
	// The first record inserted is gone; the newest survives at the head.
	if _, ok := s.Lookup("r1"); ok {
		t.Fatal("oldest record was not evicted")
	}
	if all[0].LocalID != fmt.Sprintf("r%d", DefaultCapacity+1) {
		t.Fatalf("head = %s", all[0].LocalID)
	}
}

func TestRoundTripIsFieldForFieldIdentical(t *testing.T) {
	kv := prefs.NewFileStore(filepath.Join(t.TempDir(), "agent.json"))
	s, err := Open(kv, DefaultCapacity)
	if err != nil {
		t.Fatal(err)
	}

	lat, lon := -34.60368212, -58.38156732
	rec := models.ScanRecord{
		LocalID:    "abc-123",
		SiteID:     9,
		OperatorID: 4,
		Fecha:      "2025-08-18 23:59:07",
		Latitud:    &lat,
		Longitud:   &lon,
		SyncStatus: models.SyncPending,
	}
	if err := s.Append(rec); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Open(kv, DefaultCapacity)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got, ok := reloaded.Lookup("abc-123")
	if !ok {
		t.Fatal("record lost across reload")
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip changed the record:\n got %+v\nwant %+v", got, rec)
	}
}

func TestMarkStatusIsInMemoryUntilFlush(t *testing.T) {
	kv := prefs.NewFileStore(filepath.Join(t.TempDir(), "agent.json"))
	s, _ := Open(kv, DefaultCapacity)

	if err := s.Append(record("r1", 1)); err != nil {
		t.Fatal(err)
	}
	s.MarkStatus("r1", models.SyncSynced)

	// Not flushed yet: a reload still sees pending.
	reloaded, _ := Open(kv, DefaultCapacity)
	if rec, _ := reloaded.Lookup("r1"); rec.SyncStatus != models.SyncPending {
		t.Fatalf("status persisted before Flush: %s", rec.SyncStatus)
	}

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	reloaded, _ = Open(kv, DefaultCapacity)
	if rec, _ := reloaded.Lookup("r1"); rec.SyncStatus != models.SyncSynced {
		t.Fatalf("status after Flush = %s", rec.SyncStatus)
	}
}

func TestResetErrors(t *testing.T) {
	s, _ := newTestStore(t, DefaultCapacity)

	for i := 1; i <= 3; i++ {
		if err := s.Append(record(fmt.Sprintf("r%d", i), i)); err != nil {
			t.Fatal(err)
		}
	}
	s.MarkStatus("r1", models.SyncError)
	s.MarkStatus("r2", models.SyncSynced)

	if n := s.ResetErrors(); n != 1 {
		t.Fatalf("ResetErrors() = %d, want 1", n)
	}
	if rec, _ := s.Lookup("r1"); rec.SyncStatus != models.SyncPending {
		t.Fatalf("error record not reset: %s", rec.SyncStatus)
	}
	if rec, _ := s.Lookup("r2"); rec.SyncStatus != models.SyncSynced {
		t.Fatalf("synced record touched: %s", rec.SyncStatus)
	}
}
