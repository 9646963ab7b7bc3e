package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"folio/internal/app"
	"folio/internal/auth"
	"folio/internal/config"
	models "folio/internal/domain/models/content"
	"folio/internal/handler"
	"folio/internal/metrics"
	"folio/internal/middleware"
	serviceAuth "folio/internal/service/auth"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, closeLog, err := cfg.NewLogger("server")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Identity collaborator
	var verifier auth.Verifier
	if cfg.AuthDisabled {
		if cfg.Environment == "prod" {
			log.Fatalf("AUTH_DISABLED is not allowed in prod")
		}
		verifier = auth.StaticVerifier{Actor: models.Actor{ID: cfg.DevActorID, Name: "Developer"}}
		logger.Warn("authentication disabled, all requests act as the dev actor", "actor_id", cfg.DevActorID)
	} else {
		jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		verifier = jwtVerifier
	}
	defer verifier.Close()

	m := metrics.NewMetrics()

	engine, err := app.Open(ctx, cfg, m, logger)
	if err != nil {
		log.Fatalf("Failed to initialize content engine: %v", err)
	}
	defer engine.Close()

	engine.Scheduler.Start(ctx)

	// Create handlers
	contentHandler := handler.NewContentHandler(engine.Lifecycle, engine.Publication, engine.Snapshots, logger)
	maintenanceHandler := handler.NewMaintenanceHandler(
		engine.Lifecycle,
		engine.Snapshots,
		engine.Scheduler,
		serviceAuth.NewAllowListAuthorizer(cfg.Maintainers),
		logger,
	)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	contentHandler.Register(mux)
	maintenanceHandler.Register(mux)
	mux.Handle("GET /metrics", m.Handler())

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Metrics → Routes
	h = middleware.Metrics(m)(h)
	h = middleware.AuthMiddleware(verifier)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // full rebuilds can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
