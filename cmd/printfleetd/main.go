// Command printfleetd is the print-farm control plane daemon: it connects
// every active printer's Session Manager worker, runs the scheduler on a
// timer, dispatches scheduled jobs to hardware, reconciles filament
// accounting, and fans domain events out to the alert channels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printfleet/printfleet/internal/adapters/catalog"
	"github.com/printfleet/printfleet/internal/adapters/email"
	"github.com/printfleet/printfleet/internal/adapters/metrics"
	"github.com/printfleet/printfleet/internal/adapters/persistence"
	"github.com/printfleet/printfleet/internal/adapters/protocol"
	"github.com/printfleet/printfleet/internal/adapters/push"
	"github.com/printfleet/printfleet/internal/adapters/webhook"
	"github.com/printfleet/printfleet/internal/application/accounting"
	"github.com/printfleet/printfleet/internal/application/alertdispatch"
	"github.com/printfleet/printfleet/internal/application/audit"
	"github.com/printfleet/printfleet/internal/application/dispatcher"
	"github.com/printfleet/printfleet/internal/application/scheduler"
	"github.com/printfleet/printfleet/internal/application/session"
	"github.com/printfleet/printfleet/internal/domain/alert"
	"github.com/printfleet/printfleet/internal/domain/colormatch"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/domain/fleetstate"
	"github.com/printfleet/printfleet/internal/infrastructure/config"
	"github.com/printfleet/printfleet/internal/infrastructure/crypto"
	"github.com/printfleet/printfleet/internal/infrastructure/database"
	"github.com/printfleet/printfleet/internal/infrastructure/lockset"
	"github.com/printfleet/printfleet/internal/infrastructure/logging"
	"github.com/printfleet/printfleet/internal/infrastructure/pidfile"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (empty = search default paths)")
	forceFlag := flag.Bool("force", false, "kill any existing daemon and start a new one")
	flag.Parse()

	cfg := config.MustLoadConfig(*configPath)

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("printfleetd: logging setup: %v", err)
	}
	slog.SetDefault(logger)

	pf := pidfile.New(cfg.Daemon.PIDFile)
	if err := pf.Acquire(); err != nil {
		if *forceFlag {
			logger.Warn("force mode: killing existing daemon", "pid_file", cfg.Daemon.PIDFile)
			if err := pf.KillExisting(); err != nil {
				log.Fatalf("printfleetd: kill existing daemon: %v", err)
			}
			if err := pf.Acquire(); err != nil {
				log.Fatalf("printfleetd: acquire pid file after kill: %v", err)
			}
		} else {
			log.Fatalf("printfleetd: %v (use --force to kill the existing daemon)", err)
		}
	}
	defer func() {
		if err := pf.Release(); err != nil {
			logger.Warn("release pid file", "err", err)
		}
	}()

	if err := run(cfg, logger); err != nil {
		log.Fatalf("printfleetd: %v", err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sealer, err := crypto.NewSealerFromBase64(cfg.Crypto.EncryptionKey)
	if err != nil {
		return fmt.Errorf("build credential sealer: %w", err)
	}

	printers := persistence.NewPrinterRepository(db)
	jobs := persistence.NewJobRepository(db)
	spools := persistence.NewSpoolRepository(db)
	models := persistence.NewModelRepository(db)
	artifacts := persistence.NewArtifactRepository(db)
	printrecords := persistence.NewPrintRecordRepository(db)
	runs := persistence.NewSchedulerRunRepository(db)
	alerts := persistence.NewAlertRepository(db)
	auditRepo := persistence.NewAuditRepository(db)

	bus := eventbus.New()
	state := fleetstate.New()
	locks := lockset.New()

	metricsServer, err := startMetricsServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	var catalogProvider colormatch.CatalogProvider
	if cfg.Catalog.URL != "" {
		catalogProvider = catalog.New(cfg.Catalog.URL, cfg.Catalog.Timeout)
	} else {
		catalogProvider = colormatch.NoopCatalogProvider{}
	}

	acct := accounting.New(spools, printers, models, artifacts, bus, catalogProvider, nil, locks, nil)

	supervisor := session.New(printers, sealer, protocol.NewForPrinter, bus, state, nil, logger.With("component", "session"))

	auditLog := audit.NewLogger(auditRepo, nil)
	disp := dispatcher.New(jobs, printers, artifacts, printrecords, supervisor, bus, state, acct, locks, nil).WithAudit(auditLog)
	reconciler := dispatcher.NewReconciler(disp, logger.With("component", "dispatcher_reconcile"))

	blackout, err := scheduler.ParseBlackoutWindow(cfg.Scheduler.BlackoutStart, cfg.Scheduler.BlackoutEnd)
	if err != nil {
		return fmt.Errorf("parse scheduler blackout window: %w", err)
	}
	sched := scheduler.New(jobs, printers, runs, bus, nil, scheduler.Config{
		Blackout:           blackout,
		HorizonDays:        cfg.Scheduler.HorizonDays,
		SetupBlockDuration: time.Duration(cfg.Scheduler.SetupMinutes) * time.Minute,
	})

	retention := audit.NewRetention(auditRepo, nil, 0, 0, func(removed int) {
		if removed > 0 {
			logger.Info("audit retention sweep", "removed", removed)
		}
	})

	dispatch, err := buildAlertDispatcher(cfg, alerts, logger)
	if err != nil {
		return fmt.Errorf("build alert dispatcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	active, err := printers.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active printers: %w", err)
	}
	for _, p := range active {
		if err := supervisor.Spawn(ctx, p.ID); err != nil {
			logger.Error("spawn session worker failed", "printer_id", p.ID, "err", err)
		}
	}

	printerIDs := func() []int64 {
		ids := make([]int64, len(active))
		for i, p := range active {
			ids[i] = p.ID
		}
		return ids
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() { defer wg.Done(); reconciler.Run(ctx, printerIDs) }()

	wg.Add(1)
	go func() { defer wg.Done(); supervisor.RunLivenessWatchdog(ctx, 0) }()

	wg.Add(1)
	go func() {
		defer wg.Done()
		alertdispatch.Subscribe(ctx, bus, dispatch, allUsersRecipients)
	}()
	for _, id := range printerIDs() {
		wg.Add(1)
		go func(printerID int64) {
			defer wg.Done()
			alertdispatch.SubscribePrinterErrors(ctx, bus, dispatch, allUsersRecipients, printerID)
		}(id)
	}
	spoolList, err := spools.List(ctx)
	if err != nil {
		logger.Error("list spools for alert wiring failed", "err", err)
	}
	for _, sp := range spoolList {
		wg.Add(1)
		go func(spoolID int64) {
			defer wg.Done()
			alertdispatch.SubscribeSpoolEvents(ctx, bus, dispatch, allUsersRecipients, spoolID)
		}(sp.ID)
	}

	schedulerInterval := cfg.Scheduler.Interval
	if schedulerInterval <= 0 {
		schedulerInterval = time.Hour
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		runSchedulerLoop(ctx, sched, schedulerInterval, logger)
	}()

	wg.Add(1)
	go func() { defer wg.Done(); retention.Run(ctx) }()

	logger.Info("printfleetd started", "active_printers", len(active))
	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownTimeout := cfg.Daemon.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	bus.Drain(context.Background(), shutdownTimeout)
	supervisor.StopAll()
	if metricsServer != nil {
		_ = metricsServer.Close()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout exceeded, exiting anyway")
	}
	return nil
}

func runSchedulerLoop(ctx context.Context, sched *scheduler.Scheduler, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sched.Run(ctx); err != nil {
				logger.Error("scheduler run failed", "err", err)
			}
		}
	}
}

// startMetricsServer registers the per-subsystem Prometheus collectors and
// serves them over HTTP. Returns nil when metrics are disabled.
func startMetricsServer(cfg *config.Config, logger *slog.Logger) (*http.Server, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	metrics.InitRegistry()

	schedCollector := metrics.NewSchedulerMetricsCollector()
	if err := schedCollector.Register(); err != nil {
		return nil, fmt.Errorf("register scheduler metrics collector: %w", err)
	}
	metrics.SetGlobalSchedulerCollector(schedCollector)

	dispatchCollector := metrics.NewDispatchMetricsCollector()
	if err := dispatchCollector.Register(); err != nil {
		return nil, fmt.Errorf("register dispatch metrics collector: %w", err)
	}
	metrics.SetGlobalDispatchCollector(dispatchCollector)

	sessionCollector := metrics.NewSessionMetricsCollector()
	if err := sessionCollector.Register(); err != nil {
		return nil, fmt.Errorf("register session metrics collector: %w", err)
	}
	metrics.SetGlobalSessionCollector(sessionCollector)

	acctCollector := metrics.NewAccountingMetricsCollector()
	if err := acctCollector.Register(); err != nil {
		return nil, fmt.Errorf("register accounting metrics collector: %w", err)
	}
	metrics.SetGlobalAccountingCollector(acctCollector)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(
		metrics.GetRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()
	logger.Info("metrics endpoint enabled", "addr", srv.Addr, "path", cfg.Metrics.Path)
	return srv, nil
}

// buildAlertDispatcher wires the configured channel senders. Any channel
// left unconfigured (empty SMTP host, no VAPID keys) is simply nil and
// Dispatch silently skips it for every recipient, per
// internal/application/alertdispatch's nil-sender-is-a-noop contract.
func buildAlertDispatcher(cfg *config.Config, alerts alert.Repository, logger *slog.Logger) (*alertdispatch.Dispatcher, error) {
	// Unconfigured channels stay nil at the interface level so the
	// dispatcher's nil-sender checks actually see nil (a typed-nil pointer
	// stored in an interface would not compare equal to nil).
	var emailSender alertdispatch.EmailSender
	if cfg.Alerting.SMTP.Host != "" {
		emailSender = email.New(cfg.Alerting.SMTP.Host, cfg.Alerting.SMTP.Port, cfg.Alerting.SMTP.Username, cfg.Alerting.SMTP.Password, cfg.Alerting.SMTP.From, 10*time.Second)
	}

	webhookSender := webhook.New(cfg.Alerting.Webhook.Timeout, cfg.Alerting.Webhook.AllowPrivateHost)

	var pushSender alertdispatch.PushSender
	if cfg.Alerting.Push.VAPIDPrivateKey != "" {
		sender, err := push.New(cfg.Alerting.Push.VAPIDPrivateKey, cfg.Alerting.Push.VAPIDPublicKey, cfg.Alerting.Push.Subject)
		if err != nil {
			return nil, fmt.Errorf("build push sender: %w", err)
		}
		pushSender = sender
	}

	return alertdispatch.New(alerts, emailSender, webhookSender, pushSender, noContact{}, cfg.Alerting.Workers, nil, logger.With("component", "alertdispatch")), nil
}

// noContact is the placeholder UserContact until the external
// user-directory collaborator is wired in; every lookup reports "not
// found", so only the in-app channel ever delivers.
type noContact struct{}

func (noContact) EmailFor(userID int64) (string, bool) { return "", false }
func (noContact) WebhookTargetFor(userID int64) (webhook.Target, bool) {
	return webhook.Target{}, false
}
func (noContact) PushSubscriptionFor(userID int64) (push.Subscription, bool) {
	return push.Subscription{}, false
}

// allUsersRecipients is a placeholder Recipients resolver: the external
// RBAC collaborator determines the real owner/operator/admin set. Until it
// is wired in, every alert resolves to no recipients, which keeps the
// in-process in-app-alert table correct while channel fan-out stays inert.
func allUsersRecipients(ctx context.Context, kind string) []int64 {
	_ = ctx
	_ = kind
	return nil
}
