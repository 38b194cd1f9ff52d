// Package capture turns a decoded QR payload into a queued scan record.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/agent/session"
	"github.com/ctellolasalle/RondinLS/internal/agent/store"
	"github.com/ctellolasalle/RondinLS/internal/models"

	"github.com/google/uuid"
)

// ErrInvalidCode means the scanned payload is not a positive integer
// site id. User-correctable; no record is created.
var ErrInvalidCode = errors.New("invalid checkpoint code")

// Locator acquires a device position fix. Implementations must respect
// the context deadline.
type Locator interface {
	Current(ctx context.Context) (lat, lon float64, err error)
}

// Feedback signals capture success to the operator (the haptic/toast
// analog). Validation failures get no feedback call.
type Feedback interface {
	Success(siteID int)
}

type Pipeline struct {
	store           *store.ScanStore
	session         *session.Session
	locator         Locator
	feedback        Feedback
	drain           func()
	locationTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

func NewPipeline(st *store.ScanStore, sess *session.Session, locator Locator, feedback Feedback, drain func(), locationTimeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:           st,
		session:         sess,
		locator:         locator,
		feedback:        feedback,
		drain:           drain,
		locationTimeout: locationTimeout,
		logger:          logger,
		now:             time.Now,
	}
}

// Capture validates rawQR, optionally geotags it, stamps it with the
// device's local wall clock and appends it to the queue as pending.
// The drain trigger is fire-and-forget: capture never blocks on the
// network, and the operator gets success feedback even if the later
// synchronization fails.
func (p *Pipeline) Capture(ctx context.Context, rawQR string) (models.ScanRecord, error) {
	siteID, err := strconv.Atoi(strings.TrimSpace(rawQR))
	if err != nil || siteID <= 0 {
		return models.ScanRecord{}, ErrInvalidCode
	}

	operator, err := p.session.CurrentUser()
	if err != nil {
		return models.ScanRecord{}, err
	}

	rec := models.ScanRecord{
		LocalID:    uuid.NewString(),
		SiteID:     siteID,
		OperatorID: operator.ID,
		Fecha:      models.FormatFecha(p.now()),
		SyncStatus: models.SyncPending,
	}

	// A scan without coordinates is valid: a failed or slow fix must not
	// block the round.
	if p.locator != nil {
		fixCtx, cancel := context.WithTimeout(ctx, p.locationTimeout)
		lat, lon, err := p.locator.Current(fixCtx)
		cancel()
		if err != nil {
			p.logger.Debug("Could not acquire location fix", "site_id", siteID, "error", err)
		} else {
			rec.Latitud = &lat
			rec.Longitud = &lon
		}
	}

	if err := p.store.Append(rec); err != nil {
		return models.ScanRecord{}, err
	}

	if p.drain != nil {
		go p.drain()
	}
	if p.feedback != nil {
		p.feedback.Success(siteID)
	}

	return rec, nil
}
