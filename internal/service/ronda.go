package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/models"
	"github.com/ctellolasalle/RondinLS/pkg/metrics"
)

// ErrConfigMissing means the round hours were never configured. The
// reconciler refuses to guess a default window.
var ErrConfigMissing = errors.New("ronda hours are not configured")

// RondaRepository is the data access contract for the coverage reconciler.
type RondaRepository interface {
	ListSites(ctx context.Context) ([]models.Site, error)
	LastScanPerSite(ctx context.Context, desde, hasta string) (map[int]string, error)
}

// RondaService computes the per-site coverage report for the most recent
// round window. A round starts one evening and ends the following morning,
// so the window is [yesterday+startHour, today+endHour], built as literal
// date+time text, never timezone arithmetic.
type RondaService struct {
	repo   RondaRepository
	config *ConfigCache
	logger *slog.Logger
	now    func() time.Time
}

func NewRondaService(repo RondaRepository, config *ConfigCache, logger *slog.Logger) *RondaService {
	return &RondaService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Window returns the active round window as canonical fecha text.
func (s *RondaService) Window() (inicia, termina string, hours models.RondaHours, err error) {
	horaInicio := s.config.Get(models.ConfigHoraInicioRonda)
	horaFin := s.config.Get(models.ConfigHoraFinRonda)

	if horaInicio == "" || horaFin == "" {
		return "", "", models.RondaHours{}, ErrConfigMissing
	}

	ahora := s.now()
	ayer := ahora.AddDate(0, 0, -1)

	inicia = ayer.Format("2006-01-02") + " " + horaInicio + ":00"
	termina = ahora.Format("2006-01-02") + " " + horaFin + ":00"

	return inicia, termina, models.RondaHours{HoraInicio: horaInicio, HoraFin: horaFin}, nil
}

// Report reconciles every site against the scans inside the active window.
// Output follows site-load order (ascending id), deterministic by query.
func (s *RondaService) Report(ctx context.Context) (*models.RondaReport, error) {
	inicia, termina, hours, err := s.Window()
	if err != nil {
		metrics.RondaReports.WithLabelValues("config_missing").Inc()
		return nil, err
	}

	sitios, err := s.repo.ListSites(ctx)
	if err != nil {
		metrics.RondaReports.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	ultimos, err := s.repo.LastScanPerSite(ctx, inicia, termina)
	if err != nil {
		metrics.RondaReports.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load window scans: %w", err)
	}

	report := &models.RondaReport{
		Ronda: models.RondaWindow{
			Inicia:  inicia,
			Termina: termina,
			Config:  hours,
		},
		Sitios: make([]models.SiteCoverage, 0, len(sitios)),
	}

	missed := 0
	for _, sitio := range sitios {
		cov := models.SiteCoverage{
			Lugar:  sitio.Lugar,
			Status: models.CoverageMissed,
		}
		if fecha, ok := ultimos[sitio.ID]; ok {
			display := models.DisplayFecha(fecha)
			cov.Status = models.CoverageOK
			cov.UltimoRegistro = &display
		} else {
			missed++
		}
		report.Sitios = append(report.Sitios, cov)
	}

	metrics.RondaReports.WithLabelValues("ok").Inc()
	metrics.SitesMissed.Set(float64(missed))

	s.logger.Info("Ronda report generated",
		"inicia", inicia,
		"termina", termina,
		"sitios", len(sitios),
		"missed", missed,
	)

	return report, nil
}
