package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/agent/prefs"
	"github.com/ctellolasalle/RondinLS/internal/agent/session"
	"github.com/ctellolasalle/RondinLS/internal/agent/store"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

type fakeAPI struct {
	submitted []models.ScanRecord
	err       error
}

func (f *fakeAPI) SubmitScan(ctx context.Context, rec models.ScanRecord) error {
	f.submitted = append(f.submitted, rec)
	return f.err
}

type fakeNetwork struct {
	online bool
}

func (f fakeNetwork) Online(ctx context.Context) bool { return f.online }

func newTestSyncer(t *testing.T, pendingCount int, api *fakeAPI, online, loggedIn bool) (*Syncer, *store.ScanStore) {
	t.Helper()

	kv := prefs.NewFileStore(filepath.Join(t.TempDir(), "agent.json"))
	sess := session.New(kv)
	if loggedIn {
		if err := sess.Save("tok", models.User{ID: 1}); err != nil {
			t.Fatal(err)
		}
	}

	scans, err := store.Open(kv, store.DefaultCapacity)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= pendingCount; i++ {
		rec := models.ScanRecord{
			LocalID:    fmt.Sprintf("r%d", i),
			SiteID:     i,
			OperatorID: 1,
			Fecha:      "2025-08-18 01:00:00",
			SyncStatus: models.SyncPending,
		}
		if err := scans.Append(rec); err != nil {
			t.Fatal(err)
		}
	}

	s := New(scans, sess, api, fakeNetwork{online: online}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s, scans
}

func TestDrainOfflineIsNoOp(t *testing.T) {
	api := &fakeAPI{}
	s, scans := newTestSyncer(t, 3, api, false, true)

	res, err := s.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempted != 0 || len(api.submitted) != 0 {
		t.Fatalf("offline drain submitted records: %+v", res)
	}
	if got := scans.CountByStatus(models.SyncPending); got != 3 {
		t.Fatalf("pending = %d, want 3 (statuses must not change)", got)
	}
}

func TestDrainWithoutCredentialsIsNoOp(t *testing.T) {
	api := &fakeAPI{}
	s, scans := newTestSyncer(t, 2, api, true, false)

	res, err := s.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempted != 0 || len(api.submitted) != 0 {
		t.Fatalf("drain without credentials submitted records: %+v", res)
	}
	if got := scans.CountByStatus(models.SyncPending); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}
}

func TestDrainSyncsAllPending(t *testing.T) {
	api := &fakeAPI{}
	s, scans := newTestSyncer(t, 5, api, true, true)

	res, err := s.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempted != 5 || res.Synced != 5 || res.Errored != 0 {
		t.Fatalf("result = %+v", res)
	}
	if got := scans.CountByStatus(models.SyncPending); got != 0 {
		t.Fatalf("pending remain: %d", got)
	}
	if got := scans.CountByStatus(models.SyncSynced); got != 5 {
		t.Fatalf("synced = %d", got)
	}

	// Storage order is newest-first; submissions must follow it.
	if api.submitted[0].SiteID != 5 || api.submitted[4].SiteID != 1 {
		t.Fatalf("submission order: first=%d last=%d", api.submitted[0].SiteID, api.submitted[4].SiteID)
	}
}

func TestDrainMarksRejectionsAsError(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	s, scans := newTestSyncer(t, 4, api, true, true)

	res, err := s.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Errored != 4 || res.Synced != 0 {
		t.Fatalf("result = %+v", res)
	}
	// One failing record never interrupts its siblings.
	if len(api.submitted) != 4 {
		t.Fatalf("attempts = %d, want 4", len(api.submitted))
	}
	if got := scans.CountByStatus(models.SyncError); got != 4 {
		t.Fatalf("error = %d", got)
	}
	if got := scans.CountByStatus(models.SyncPending); got != 0 {
		t.Fatalf("records slid back to pending: %d", got)
	}
}

func TestErrorRecordsAreNotRetriedByPlainDrain(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	s, _ := newTestSyncer(t, 2, api, true, true)

	if _, err := s.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Second pass: everything is error now, nothing pending.
	api.err = nil
	api.submitted = nil
	res, err := s.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempted != 0 || len(api.submitted) != 0 {
		t.Fatalf("plain drain retried error records: %+v", res)
	}
}

func TestRetryErrorsResubmits(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	s, scans := newTestSyncer(t, 3, api, true, true)

	if _, err := s.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	api.err = nil
	res, err := s.RetryErrors(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced != 3 {
		t.Fatalf("retry synced = %d, want 3", res.Synced)
	}
	if got := scans.CountByStatus(models.SyncError); got != 0 {
		t.Fatalf("error remain: %d", got)
	}
}
