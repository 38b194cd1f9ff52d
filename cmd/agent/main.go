package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/agent/capture"
	"github.com/ctellolasalle/RondinLS/internal/agent/client"
	"github.com/ctellolasalle/RondinLS/internal/agent/prefs"
	"github.com/ctellolasalle/RondinLS/internal/agent/session"
	"github.com/ctellolasalle/RondinLS/internal/agent/store"
	"github.com/ctellolasalle/RondinLS/internal/agent/syncer"
	"github.com/ctellolasalle/RondinLS/internal/config"
	"github.com/ctellolasalle/RondinLS/internal/models"
	"github.com/ctellolasalle/RondinLS/pkg/infra"
)

const usage = `rondin-agent <command> [flags]

Commands:
  login   -email <email> -password <password>   authenticate and store credentials
  logout                                        clear stored credentials
  scan    -code <qr-text> [-lat f -lon f]       capture a checkpoint scan and drain
  sync                                          drain pending scans now
  retry                                         re-submit errored scans
  status                                        show queue counters and recent scans
  sites                                         list checkpoint sites
  ronda                                         show the round coverage report
  watch                                         run the background sync loop
`

type agentEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	scans   *store.ScanStore
	api     *client.APIClient
	syncer  *syncer.Syncer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	kv := prefs.NewFileStore(cfg.AgentStatePath)
	sess := session.New(kv)

	scans, err := store.Open(kv, cfg.QueueCapacity)
	if err != nil {
		slog.Error("Fatal error opening the scan queue", "error", err)
		os.Exit(1)
	}

	api := client.New(cfg.APIBaseURL, cfg.SubmitTimeout, sess, logger)
	env := &agentEnv{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		scans:   scans,
		api:     api,
		syncer:  syncer.New(scans, sess, api, api, cfg.SubmitTimeout, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cmdErr error
	switch os.Args[1] {
	case "login":
		cmdErr = env.cmdLogin(ctx, os.Args[2:])
	case "logout":
		cmdErr = env.session.Clear()
	case "scan":
		cmdErr = env.cmdScan(ctx, os.Args[2:])
	case "sync":
		cmdErr = env.cmdSync(ctx)
	case "retry":
		cmdErr = env.cmdRetry(ctx)
	case "status":
		cmdErr = env.cmdStatus()
	case "sites":
		cmdErr = env.cmdSites(ctx)
	case "ronda":
		cmdErr = env.cmdRonda(ctx)
	case "watch":
		cmdErr = env.cmdWatch(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, "error:", cmdErr)
		os.Exit(1)
	}
}

func (e *agentEnv) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "operator email")
	password := fs.String("password", "", "operator password")
	fs.Parse(args)

	if *email == "" || *password == "" {
		return errors.New("email and password are required")
	}

	token, user, err := e.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := e.session.Save(token, user); err != nil {
		return err
	}

	fmt.Printf("Sesión iniciada: %s (%s)\n", user.Nombre, user.Rol)
	return nil
}

// terminalFeedback is the CLI stand-in for the device's haptic pulse.
type terminalFeedback struct{}

func (terminalFeedback) Success(siteID int) {
	fmt.Printf("✅ Sitio %d registrado correctamente\n", siteID)
}

// fixedLocator replays coordinates passed on the command line; the CLI
// has no GPS of its own.
type fixedLocator struct {
	lat, lon float64
}

func (l fixedLocator) Current(ctx context.Context) (float64, float64, error) {
	return l.lat, l.lon, nil
}

func (e *agentEnv) cmdScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	code := fs.String("code", "", "decoded QR text")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	fs.Parse(args)

	var locator capture.Locator
	if *lat != 0 || *lon != 0 {
		locator = fixedLocator{lat: *lat, lon: *lon}
	}

	pipeline := capture.NewPipeline(e.scans, e.session, locator, terminalFeedback{}, nil, e.cfg.LocationTimeout, e.logger)
	if _, err := pipeline.Capture(ctx, *code); err != nil {
		if errors.Is(err, capture.ErrInvalidCode) {
			return errors.New("el codigo escaneado no es valido para este sistema")
		}
		return err
	}

	// The capture itself never waits on the network; the post-capture
	// drain runs here so the process doesn't exit with the attempt unmade.
	return e.cmdSync(ctx)
}

func (e *agentEnv) cmdSync(ctx context.Context) error {
	res, err := e.syncer.Drain(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("sync: %d attempted, %d synced, %d errored\n", res.Attempted, res.Synced, res.Errored)
	return nil
}

func (e *agentEnv) cmdRetry(ctx context.Context) error {
	res, err := e.syncer.RetryErrors(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("retry: %d attempted, %d synced, %d errored\n", res.Attempted, res.Synced, res.Errored)
	return nil
}

func (e *agentEnv) cmdStatus() error {
	fmt.Printf("pending: %d  synced: %d  error: %d\n",
		e.scans.CountByStatus(models.SyncPending),
		e.scans.CountByStatus(models.SyncSynced),
		e.scans.CountByStatus(models.SyncError),
	)

	for i, rec := range e.scans.All() {
		if i >= 10 {
			break
		}
		fmt.Printf("  [%s] sitio %d  %s\n", rec.SyncStatus, rec.SiteID, rec.Fecha)
	}
	return nil
}

func (e *agentEnv) cmdSites(ctx context.Context) error {
	sites, err := e.api.Sites(ctx)
	if err != nil {
		return err
	}
	for _, s := range sites {
		fmt.Printf("%4d  %s\n", s.ID, s.Lugar)
	}
	return nil
}

func (e *agentEnv) cmdRonda(ctx context.Context) error {
	report, err := e.api.RondaStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Ronda %s → %s\n", report.Ronda.Inicia, report.Ronda.Termina)
	for _, sitio := range report.Sitios {
		ultimo := "-"
		if sitio.UltimoRegistro != nil {
			ultimo = *sitio.UltimoRegistro
		}
		fmt.Printf("  %-8s %-30s %s\n", sitio.Status, sitio.Lugar, ultimo)
	}
	return nil
}

// cmdWatch is the long-running sync loop: a periodic drain trigger plus
// an offline→online transition trigger, with jittered backoff after
// failed passes.
func (e *agentEnv) cmdWatch(ctx context.Context) error {
	backoff := infra.NewBackoff(2*time.Second, 60*time.Second, 2.0)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.logger.Info("🔄 Agent watch loop started", "poll_interval", e.cfg.PollInterval)

	online := e.api.Online(ctx)
	drain := func() {
		res, err := e.syncer.Drain(ctx)
		if err != nil {
			wait := backoff.Next()
			e.logger.Error("Drain failed, backing off", "retry_in", wait, "error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
			return
		}
		backoff.Reset()
		if res.Attempted > 0 {
			e.logger.Info("Drain finished", "synced", res.Synced, "errored", res.Errored)
		}
	}

	drain()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("👋 Agent watch loop stopped")
			return nil
		case <-ticker.C:
			nowOnline := e.api.Online(ctx)
			if nowOnline && !online {
				e.logger.Info("🌐 Connectivity restored, draining queue")
			}
			online = nowOnline
			if online {
				drain()
			}
		}
	}
}
