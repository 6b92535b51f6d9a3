package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mneedham/pinot-cryptowatch/config"
	"github.com/mneedham/pinot-cryptowatch/internal/app"
	"github.com/mneedham/pinot-cryptowatch/internal/broker"
	"github.com/mneedham/pinot-cryptowatch/internal/ingest"
	"github.com/mneedham/pinot-cryptowatch/internal/logger"
	"github.com/mneedham/pinot-cryptowatch/internal/sink"
	"github.com/mneedham/pinot-cryptowatch/internal/storage"
	"github.com/mneedham/pinot-cryptowatch/internal/stream"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (e.g., DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, used by the
// long-running stream and sink modes.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runStream subscribes to the upstream market-data firehose and publishes
// normalized trades onto the trade log until interrupted.
func runStream(ctx context.Context, cfg config.Config) error {
	client := stream.NewClient(cfg.Stream.URL, cfg.Stream.APIKey)
	publisher := broker.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() { _ = publisher.Close() }()

	loop := ingest.NewLoop(client, publisher, cfg.Ingest.FlushEvery)
	return loop.Run(ctx)
}

// runSink drains the trade log into the column store until interrupted.
func runSink(ctx context.Context, cfg config.Config) error {
	db, err := app.InitPostgres(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := storage.NewTradesRepository(db)
	s := sink.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, repo)

	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// main is the entry point of the pinot-cryptowatch service.
//
// Modes (selected via --mode flag):
//   - stream: Subscribes to the upstream market-data stream and publishes
//     normalized trades onto the trade log.
//   - sink:   Consumes the trade log and loads trades into the column store.
//   - api:    Starts the REST API serving the dashboard query bundles.
//
// Flags:
//   - --mode: Execution mode ("stream", "sink" or "api"). Default: "stream".
//   - --port: Port for the API server. Defaults to value from config (SERVER_PORT).
func main() {
	ctx := context.Background()

	// Load configuration from environment or .env file
	config.LoadConfig()

	// Initialize JSON logger
	logger.Init()

	// Parse CLI flags (override config defaults if provided)
	mode := flag.String("mode", "stream", "Mode: stream, sink or api")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	flag.Parse()

	switch *mode {
	case "stream":
		logger.L().Info().Msg("running stream ingestion")
		if config.AppConfig.Stream.APIKey == "" {
			logger.L().Fatal().Msg("STREAM_API_KEY is required in stream mode")
		}

		runCtx, cancel := signalContext(ctx)
		defer cancel()
		if err := runStream(runCtx, config.AppConfig); err != nil {
			logger.L().Fatal().Err(err).Msg("stream ingestion failed")
		}
		logger.L().Info().Msg("stream ingestion stopped")

	case "sink":
		logger.L().Info().Msg("running trade log sink")

		runCtx, cancel := signalContext(ctx)
		defer cancel()
		if err := runSink(runCtx, config.AppConfig); err != nil {
			logger.L().Fatal().Err(err).Msg("trade log sink failed")
		}
		logger.L().Info().Msg("trade log sink stopped")

	case "api":
		// API mode: start the HTTP server
		logger.L().Info().Msg("starting API server")

		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := startServer(router, *port)
		gracefulShutdown(ctx, server, cleanup)

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
