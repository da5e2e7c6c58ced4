package main

import (
	"context"
	"errors"
	"os"
	"time"

	"lifedash/internal/amqp"
	"lifedash/internal/cli"
	"lifedash/internal/log"
	"lifedash/internal/sheets"
	gsheet "lifedash/internal/sheets/google"
	mem "lifedash/internal/sheets/memory"
	"lifedash/internal/worker"
)

const (
	minRetryDelay = time.Second
	maxRetryDelay = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting sync-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("Sync worker needs a broker", log.FieldError, "AMQP_URL is empty")
		os.Exit(1)
	}

	// Without a spreadsheet the worker mirrors into memory, which is enough
	// to exercise the queue locally.
	var writer sheets.TransactionWriter
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateSheets(); err != nil {
			cli.Fatal(logger, "Configuration validation failed", err)
		}
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName,
			logger.WithComponent(log.ComponentSheets))
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		writer = client
		logger.Info("Google Sheets client initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		writer = mem.New()
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		cfg.AMQPNotificationQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	syncWorker := worker.NewSyncWorker(writer, logger.WithComponent(log.ComponentWorker))

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		amqpClient.Close()
	})

	consume(ctx, logger, amqpClient, syncWorker)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Sync worker stopped gracefully")
}

// consume keeps a consumer attached until ctx ends, reconnecting with
// exponential backoff when the delivery channel closes.
func consume(ctx context.Context, logger *log.Logger, client *amqp.Client, w *worker.SyncWorker) {
	delay := minRetryDelay
	for {
		started := time.Now()
		err := client.ConsumeRecordSync(ctx, w.HandleSyncMessage)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		// A consumer that ran for a while was healthy; start the backoff over.
		if time.Since(started) > maxRetryDelay {
			delay = minRetryDelay
		}
		logger.Error("Message consumption stopped, retrying",
			log.FieldError, errString(err),
			"retry_in", delay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "consumer returned"
	}
	return err.Error()
}
