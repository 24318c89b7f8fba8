package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yt-fetcher/internal/events"
	"yt-fetcher/internal/handlers"
	"yt-fetcher/internal/logging"
	"yt-fetcher/internal/metrics"
	"yt-fetcher/internal/middleware"
	"yt-fetcher/internal/session"
	"yt-fetcher/internal/startup"
	"yt-fetcher/internal/sweeper"
	"yt-fetcher/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Pre-populate metric label combinations
	metrics.InitializeMetrics()

	// Session registry: the one shared table everything goes through
	registry := session.NewRegistry(config.DownloadDir, config.UploadDir)

	// Event hub for progress/log push
	hub := events.NewHub()

	// Cap on concurrently running batches across all sessions
	pool := workers.NewPool(workers.Count(config.MaxConcurrentBatches))
	logging.Info("Download worker pool size: %d", pool.Size())

	// Retention sweeper
	sweep := sweeper.New(registry, config.SessionTTL, config.FileTTL, config.SweepInterval)
	sweep.Start()

	// Initialize handlers
	h := handlers.New(registry, hub, pool, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, sweep)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Event channel
	r.HandleFunc("/ws", h.Connect)

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/download", h.Download).Methods("POST")
	api.HandleFunc("/status", h.Status).Methods("GET")

	// Credential upload and per-session files
	r.HandleFunc("/upload_cookies", h.UploadCookies).Methods("POST")
	r.HandleFunc("/downloads/{session}", h.ListFiles).Methods("GET")
	r.HandleFunc("/download_file/{session}/{filename}", h.FetchFile).Methods("GET")

	// Static files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, sweep *sweeper.Sweeper) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweep.Stop()
	startup.LogShutdownStepComplete("Sweeper stopped")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
