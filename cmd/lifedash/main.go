package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"lifedash/internal/amqp"
	"lifedash/internal/analytics"
	"lifedash/internal/cache"
	"lifedash/internal/cli"
	"lifedash/internal/format"
	apphttp "lifedash/internal/http"
	"lifedash/internal/log"
	"lifedash/internal/notify"
	"lifedash/internal/records"
	"lifedash/internal/scheduler"
	"lifedash/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	kv := cli.InitKV(context.Background(), logger, cfg)

	store := records.NewStore(kv, records.WithLogger(logger.WithComponent(log.ComponentRecords)))
	if err := store.Load(context.Background()); err != nil {
		cli.Fatal(logger, "Failed to load records", err)
	}

	formatter, err := format.New(cfg.Currency, cfg.CurrencyRate, cfg.Language)
	if err != nil {
		cli.Fatal(logger, "Invalid display settings", err)
	}

	// The broker is optional: without it the dashboard works, nothing is mirrored.
	var (
		amqpClient  *amqp.Client
		syncPub     services.SyncPublisher
		notifierOps = []notify.NotifierOption{
			notify.WithLocation(loc),
			notify.WithNotifierLogger(logger.WithComponent(log.ComponentNotify)),
		}
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			cfg.AMQPNotificationQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Warn("AMQP unavailable, remote sync disabled", log.FieldError, err.Error())
		} else {
			syncPub = amqpClient
			notifierOps = append(notifierOps, notify.WithPublisher(amqpClient))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	memo := analytics.NewMemo(64, 10*time.Minute)
	cacheManager := cache.NewManager()
	cacheManager.Register(memo.Cache())
	cacheManager.StartCleanup(5 * time.Minute)

	notifier := notify.NewNotifier(store, notifierOps...)
	dashboard := services.NewDashboardService(store, memo, loc)

	sched := scheduler.New(loc, logger.WithComponent(log.ComponentScheduler))
	refresh := func(ctx context.Context, now time.Time) { notifier.Refresh(ctx, now) }
	checkReminders := func(ctx context.Context, now time.Time) { notifier.CheckReminders(ctx, now) }
	if _, err := sched.Every("notifications", cfg.NotificationCheckInterval, refresh); err != nil {
		cli.Fatal(logger, "Failed to schedule notification refresh", err)
	}
	if _, err := sched.Every("reminders", cfg.ReminderCheckInterval, checkReminders); err != nil {
		cli.Fatal(logger, "Failed to schedule reminder checks", err)
	}
	sched.RunNow(refresh)
	sched.Start()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:        store,
		Transactions: services.NewTransactionService(store, syncPub, logger.WithComponent(log.ComponentRecords)),
		Dashboard:    dashboard,
		Notifier:     notifier,
		Formatter:    formatter,
		Logger:       logger.WithComponent(log.ComponentHTTP),
		Location:     loc,
		Ready: func(ctx context.Context) map[string]string {
			checks := map[string]string{"amqp": "disabled"}
			if amqpClient != nil {
				checks["amqp"] = amqpClient.Status()
			}
			return checks
		},
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		sched.Stop()
		cacheManager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := store.Close(shutdownCtx); err != nil {
			logger.Error("Pending writes not flushed", log.FieldError, err.Error())
		}
		if err := kv.Close(); err != nil {
			logger.Error("Failed to close storage", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting lifedash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"currency", formatter.Currency.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
