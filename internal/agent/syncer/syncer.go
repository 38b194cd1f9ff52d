// Package syncer reconciles the local scan queue against the remote
// ingestion endpoint: at-least-once delivery per record until synced.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/agent/session"
	"github.com/ctellolasalle/RondinLS/internal/agent/store"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

// Submitter delivers one record to the ingestion endpoint.
type Submitter interface {
	SubmitScan(ctx context.Context, rec models.ScanRecord) error
}

// Connectivity reports whether the API is reachable right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Result summarizes one drain pass.
type Result struct {
	Attempted int
	Synced    int
	Errored   int
	// Skipped is true when another drain already held the guard; the
	// trigger is simply dropped, never queued.
	Skipped bool
}

// Syncer runs drain passes over the scan queue. The guard mutex makes
// overlapping triggers (post-capture, connectivity-restored, manual)
// collapse into one pass: concurrent drains over the same snapshot would
// double-submit and corrupt the status bookkeeping.
type Syncer struct {
	store         *store.ScanStore
	session       *session.Session
	api           Submitter
	network       Connectivity
	submitTimeout time.Duration
	logger        *slog.Logger
	guard         sync.Mutex
}

func New(st *store.ScanStore, sess *session.Session, api Submitter, network Connectivity, submitTimeout time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:         st,
		session:       sess,
		api:           api,
		network:       network,
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

// Drain submits every pending record once, sequentially, in storage
// order (newest first). Success marks a record synced, any failure marks
// it error; a failing record never interrupts its siblings. The queue is
// persisted once after the whole batch, so a crash mid-batch leaves the
// attempted records pending for the next pass — safe, because the server
// accepts duplicate inserts.
//
// Without connectivity or credentials the pass is a no-op: statuses stay
// untouched and the records remain pending.
func (s *Syncer) Drain(ctx context.Context) (Result, error) {
	if !s.guard.TryLock() {
		return Result{Skipped: true}, nil
	}
	defer s.guard.Unlock()

	if !s.network.Online(ctx) {
		s.logger.Debug("Drain skipped: API unreachable")
		return Result{}, nil
	}
	if _, err := s.session.Token(); err != nil {
		if errors.Is(err, session.ErrNoCredentials) {
			s.logger.Debug("Drain skipped: no stored credentials")
			return Result{}, nil
		}
		return Result{}, err
	}

	start := time.Now()

	// Records already in error are deliberately excluded: they come back
	// only through the explicit RetryErrors action.
	pending := s.store.PendingIDs()
	if len(pending) == 0 {
		return Result{}, nil
	}

	var res Result
	for _, localID := range pending {
		rec, ok := s.store.Lookup(localID)
		if !ok {
			continue
		}

		res.Attempted++

		subCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
		err := s.api.SubmitScan(subCtx, rec)
		cancel()

		if err != nil {
			s.logger.Error("Scan submission failed", "local_id", rec.LocalID, "site_id", rec.SiteID, "error", err)
			s.store.MarkStatus(localID, models.SyncError)
			res.Errored++
			continue
		}

		s.store.MarkStatus(localID, models.SyncSynced)
		res.Synced++
	}

	if err := s.store.Flush(); err != nil {
		return res, err
	}

	s.logger.Info("Drain cycle telemetry",
		"attempted", res.Attempted,
		"synced", res.Synced,
		"errored", res.Errored,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

// RetryErrors is the explicit re-submission action for the error class:
// it re-marks error records as pending, persists that, and runs a drain.
func (s *Syncer) RetryErrors(ctx context.Context) (Result, error) {
	s.guard.Lock()
	reset := s.store.ResetErrors()
	var flushErr error
	if reset > 0 {
		flushErr = s.store.Flush()
	}
	s.guard.Unlock()

	if flushErr != nil {
		return Result{}, flushErr
	}
	if reset == 0 {
		return Result{}, nil
	}

	s.logger.Info("Retrying errored scans", "count", reset)
	return s.Drain(ctx)
}
