package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/italolelis/grabber/internal/batch"
	"github.com/italolelis/grabber/internal/config"
	"github.com/italolelis/grabber/internal/download"
	"github.com/italolelis/grabber/internal/fetch"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/notifier"
	"github.com/italolelis/grabber/internal/progress"
	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/storage/sqlite"
	"github.com/italolelis/grabber/internal/telemetry"
)

var version = "dev"

// app carries everything a command needs once the environment is loaded.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	repo       storage.DownloadRepository
	tel        *telemetry.Telemetry
	notif      notifier.Notifier
	instanceID string
	server     *http.Server
	serverErrs chan error
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	a.cfg = cfg

	// stdout belongs to the progress line
	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	a.instanceID = storage.GenerateInstanceID()
	logger = logger.With("instance_id", a.instanceID)

	// =========================================================================
	// Start Telemetry
	a.tel, err = telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	if cfg.Telemetry.Enabled {
		a.startServer(logctx.WithLogger(ctx, logger))
	}

	// =========================================================================
	// Start Database
	a.db, err = sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open download ledger: %w", err)
	}

	a.repo = sqlite.NewInstrumentedDownloadRepository(sqlite.NewDownloadRepository(a.db, cfg.LockTTL), a.tel)

	// =========================================================================
	// Start Notification
	a.notif = notifier.New(cfg.DiscordWebhookURL)

	return nil
}

func (a *app) startServer(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	a.server = telemetry.NewServer(ctx, a.tel, telemetry.ServerConfig{
		BindAddress:  a.cfg.Web.BindAddress,
		ReadTimeout:  a.cfg.Web.ReadTimeout,
		WriteTimeout: a.cfg.Web.WriteTimeout,
		IdleTimeout:  a.cfg.Web.IdleTimeout,
	})

	// buffered so the goroutine can exit if nobody collects the error
	a.serverErrs = make(chan error, 1)

	go func() {
		logger.Info("Initializing ops server", "host", a.cfg.Web.BindAddress)
		a.serverErrs <- a.server.ListenAndServe()
	}()
}

func (a *app) close(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("failed to gracefully shutdown the server", "err", err)

			errs = append(errs, a.server.Close())
		}

		select {
		case err := <-a.serverErrs:
			if !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, fmt.Errorf("server error: %w", err))
			}
		default:
		}
	}

	if a.tel != nil {
		errs = append(errs, a.tel.Shutdown(context.WithoutCancel(ctx)))
	}

	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	return errors.Join(errs...)
}

func (a *app) withLogger(ctx context.Context) context.Context {
	return logctx.WithLogger(ctx, slog.Default().With("instance_id", a.instanceID))
}

// runner builds the orchestrated download pipeline: ledger claim, telemetry
// and notifications around the HTTP strategy.
func (a *app) runner() (batch.Runner, error) {
	client := fetch.NewClient(fetch.Options{
		Timeout:   a.cfg.RequestTimeout,
		ChunkSize: a.cfg.ChunkSize,
	})

	orch, err := download.NewOrchestrator(
		fetch.NewStrategy(client),
		download.NewProber(client, a.cfg.ProbeAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	instrumented := batch.RunFunc(func(ctx context.Context, task *download.Task) (download.Outcome, error) {
		var outcome download.Outcome

		err := a.tel.InstrumentDownload(ctx, func(ctx context.Context) error {
			var err error

			outcome, err = orch.Run(ctx, task)

			return err
		})

		a.tel.RecordProbe(probeDecision(outcome, err).String())

		return outcome, err
	})

	return &batch.Tracked{
		Runner:     instrumented,
		Repo:       a.repo,
		InstanceID: a.instanceID,
		Notifier:   a.notif,
	}, nil
}

// newTask applies the configured defaults and per-invocation overrides.
func (a *app) newTask(ctx context.Context, source, dest string, opts taskFlags) (*download.Task, error) {
	header := http.Header{}

	for k, v := range a.cfg.Headers {
		header.Set(k, v)
	}

	for _, h := range opts.headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q, expected Key:Value", h)
		}

		header.Set(textproto.TrimString(k), textproto.TrimString(v))
	}

	if a.cfg.UserAgent != "" && header.Get("User-Agent") == "" {
		header.Set("User-Agent", a.cfg.UserAgent)
	}

	referer := opts.referer
	if referer == "" {
		referer = a.cfg.Referer
	}

	status := progress.Log(logctx.LoggerFromContext(ctx), source, progress.DefaultLogInterval)
	if !opts.quiet {
		status = progress.NewConsole().Report
	}

	return download.NewTask(source, dest, download.Options{
		Header:  header,
		Referer: referer,
		Force:   opts.force || a.cfg.ForceOverwrite,
		Status:  progress.Multi(status, a.tel.ProgressRecorder()),
	}), nil
}

// probeDecision recovers the prober verdict from the orchestrator result.
func probeDecision(outcome download.Outcome, err error) download.Decision {
	switch {
	case errors.Is(err, download.ErrSizeConflict):
		return download.DecisionFatal
	case outcome == download.OutcomeSkipped:
		return download.DecisionSkip
	default:
		return download.DecisionProceed
	}
}

type taskFlags struct {
	force   bool
	quiet   bool
	referer string
	headers []string
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
