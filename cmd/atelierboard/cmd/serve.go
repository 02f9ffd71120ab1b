package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atelierboard/atelierboard/internal/server"
	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/logging"
)

// serveCmd starts the dashboard API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start the HTTP server backing the dashboard.

Features:
  - REST endpoints for workflow lists, planning, notes, and orders
  - Server-Sent Events streams (/api/v1/board/stream, /api/v1/orders/stream)
  - WebSocket feed (/api/v1/updates/ws)
  - Order webhook ingestion with live notification fan-out
  - Rate limiting, CORS, request logging, and panic recovery
  - Graceful shutdown with connection draining

Environment Variables:
  HTTP_PORT      - Server port
  HTTP_HOST      - Bind address
  DATABASE_PATH  - SQLite database file`,
	Example: `  # Start on the default port
  atelierboard serve

  # Custom port and database location
  atelierboard serve --port 8080 --db /var/lib/atelierboard/board.db

  # Restrict CORS to the deployed front-end
  atelierboard serve --cors-origins "https://board.example.com"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 4000, "Server port")
	serveCmd.Flags().String("host", "localhost", "Bind address")
	serveCmd.Flags().String("db", "atelierboard.db", "SQLite database file")

	serveCmd.Flags().Bool("cors", true, "Enable CORS")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated, empty allows all)")

	serveCmd.Flags().Int("rate-limit", 300, "Requests per minute per IP (0 to disable)")
	serveCmd.Flags().Int("cache-ttl", 30, "Stats cache TTL in seconds")

	serveCmd.Flags().Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	serveCmd.Flags().Duration("idle-timeout", 120*time.Second, "HTTP idle timeout")

	serveCmd.Flags().Bool("metrics", true, "Enable metrics endpoint")
	serveCmd.Flags().String("prefix", "/api/v1", "API path prefix")
}

func runServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	dbPath, _ := cmd.Flags().GetString("db")
	corsEnabled, _ := cmd.Flags().GetBool("cors")
	corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
	rateLimit, _ := cmd.Flags().GetInt("rate-limit")
	cacheTTL, _ := cmd.Flags().GetInt("cache-ttl")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	idleTimeout, _ := cmd.Flags().GetDuration("idle-timeout")
	metricsEnabled, _ := cmd.Flags().GetBool("metrics")
	pathPrefix, _ := cmd.Flags().GetString("prefix")

	if envPort := os.Getenv("HTTP_PORT"); envPort != "" {
		if p, err := parsePort(envPort); err == nil {
			port = p
		}
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" {
		host = envHost
	}
	if envDB := viper.GetString("database_path"); envDB != "" {
		dbPath = envDB
	}

	logger := logging.Default()
	logger.Info().
		Int("port", port).
		Str("host", host).
		Str("db", dbPath).
		Str("prefix", pathPrefix).
		Int("rate_limit", rateLimit).
		Msg("Starting dashboard server")

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("Store close failed")
		}
	}()

	cfg := server.Config{
		Host:           host,
		Port:           port,
		PathPrefix:     pathPrefix,
		CORSEnabled:    corsEnabled,
		CORSOrigins:    corsOrigins,
		RateLimit:      rateLimit,
		CacheTTL:       time.Duration(cacheTTL) * time.Second,
		ReadTimeout:    readTimeout,
		IdleTimeout:    idleTimeout,
		MetricsEnabled: metricsEnabled,
	}

	srv := server.New(st, cfg, logger)
	srv.Start()

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Handler:     srv.Handler(),
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
		// No WriteTimeout: SSE connections stay open indefinitely.
	}

	return startServerWithGracefulShutdown(httpServer, srv, logger)
}

// startServerWithGracefulShutdown runs the HTTP server until a signal
// arrives, then drains connections.
func startServerWithGracefulShutdown(httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("background shutdown failed: %w", err)
		}

		logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

// parsePort validates a TCP port string.
func parsePort(value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
