package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"CheckinKiosk/config"
	"CheckinKiosk/internal/cooldown"
	"CheckinKiosk/internal/directory"
	"CheckinKiosk/internal/engine"
	"CheckinKiosk/internal/mirror"
	"CheckinKiosk/internal/notify"
	"CheckinKiosk/internal/reconcile"
	"CheckinKiosk/internal/scanner"
	"CheckinKiosk/internal/store"
	"CheckinKiosk/pkg/logger"
	"CheckinKiosk/pkg/snowflake"
	"CheckinKiosk/storage"
	"CheckinKiosk/storage/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Init(cfg)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Logger.Fatal("Failed to create data dir", zap.Error(err))
	}

	if err := storage.Init(cfg); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	cache := cooldown.New(cfg.CachePath(), logger.Logger)
	if err := cache.Load(); err != nil {
		logger.Logger.Error("Failed to load scan cache, starting empty", zap.Error(err))
	}

	evStore := store.New(database.DB(), cfg.DeviceName, logger.Logger)
	gateway := directory.New(database.DB())

	sinks := []mirror.Sink{
		mirror.NewWorkbookSink(cfg.WorkbookPath(), cfg.PendingPath("workbook"), logger.Logger),
	}
	if cfg.LocalCSV {
		sinks = append(sinks, mirror.NewCSVSink(cfg.RecordsDir(), cfg.PendingPath("csv"), logger.Logger))
	}
	for _, s := range sinks {
		s.FlushPending()
	}

	mailer := notify.NewMailer(cfg, logger.Logger)
	queue := notify.NewQueue(mailer, cfg.NotifyQueueSize, logger.Logger)
	queue.Start(ctx)

	// Reconciliation must finish before the scanner delivers the first
	// code: it is the only other writer of the cooldown cache.
	reconcile.New(evStore, cache, nil, logger.Logger).Run(ctx)

	showDayListing(ctx, evStore)

	eng := engine.New(engine.Params{
		Cooldown:  cache,
		Directory: gateway,
		Events:    evStore,
		Sinks:     sinks,
		Notifier:  queue,
		Window:    time.Duration(cfg.CooldownSeconds) * time.Second,
		Log:       logger.Logger,
	})

	go func() {
		if err := mailer.SendAdmin(ctx, "CheckinApp iniciada", "A aplicação foi aberta."); err != nil {
			logger.Logger.Debug("Startup notice not sent", zap.Error(err))
		}
	}()

	sc := scanner.New(cfg.ScannerPort, cfg.ScannerBaud, logger.Logger, func(err error) {
		go func() {
			notice := "O scanner está desconectado há mais de 10 minutos: " + err.Error()
			if err := mailer.SendAdmin(ctx, "Scanner offline", notice); err != nil {
				logger.Logger.Debug("Scanner notice not sent", zap.Error(err))
			}
		}()
	})

	logger.Logger.Info("Kiosk ready",
		zap.String("service", cfg.ServiceName),
		zap.String("device", cfg.DeviceName),
		zap.String("environment", cfg.Environment),
	)

	for code := range sc.Run(ctx) {
		// Optimistic feedback first: a cache-only guess with zero I/O,
		// replaced by the authoritative result once Process returns.
		showTentative(code, eng.Peek(code))
		go func(code string) {
			res := eng.Process(ctx, code)
			showFinal(code, res)
			if res.Status == engine.StatusOK {
				showDayListing(ctx, evStore)
			}
		}(code)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := mailer.SendAdmin(shutdownCtx, "CheckinApp encerrada", "A aplicação foi fechada."); err != nil {
		logger.Logger.Debug("Shutdown notice not sent", zap.Error(err))
	}
	queue.Wait()
	logger.Logger.Info("Kiosk stopped")
}

// showTentative, showFinal and showDayListing stand in for the host UI
// surface: the same two-phase message contract plus the day listing
// refreshed at boot and after each recorded scan, rendered as log lines.

func showDayListing(ctx context.Context, evStore *store.Store) {
	rows, err := evStore.TodayEvents(ctx, time.Now())
	if err != nil {
		logger.Logger.Warn("Failed to load today's events", zap.Error(err))
		return
	}
	logger.Logger.Info("Registos de hoje", zap.Int("count", len(rows)))
	for _, ev := range rows {
		logger.Logger.Info("Display: " + formatDayRow(ev))
	}
}

func formatDayRow(ev store.TodayEvent) string {
	line := fmt.Sprintf("%s  %s (%d): %s",
		ev.Timestamp.Format("15:04:05"), ev.Name, ev.StudentNumber, ev.Action)
	if ev.DeviceName != "" {
		line += " @ " + ev.DeviceName
	}
	return line
}

func showTentative(code string, res engine.Result) {
	switch res.Status {
	case engine.StatusIgnored:
		logger.Logger.Info("Display (tentative): leitura repetida", zap.String("code", code))
	default:
		logger.Logger.Info("Display (tentative): "+string(res.Action)+"…", zap.String("code", code))
	}
}

func showFinal(code string, res engine.Result) {
	switch res.Status {
	case engine.StatusIgnored:
		logger.Logger.Info("Display: leitura ignorada", zap.String("code", code))
	case engine.StatusNotFound:
		logger.Logger.Info("Display: QR não reconhecido na base de dados", zap.String("code", code))
	default:
		logger.Logger.Info("Display: "+string(res.Action)+": "+res.StudentName, zap.String("code", code))
	}
}
