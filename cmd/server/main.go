/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rota engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config
  2. Initialize SQLite store
  3. Wire the lifecycle services and API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./rota-server -db="./data/rota.db"

  # Run with a config file
  ./rota-server -config=./config.yaml

SEE ALSO:
  - config/config.go: Config file format and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/rota-engine/api"
	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/config"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/store/sqlite"
	"github.com/warp/rota-engine/timeclock"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Notifier: webhook when configured, log otherwise.
	var notifier schedule.Notifier = schedule.LogNotifier{}
	if cfg.Notifier.WebhookURL != "" {
		notifier = schedule.NewWebhookNotifier(cfg.Notifier.WebhookURL)
	}

	// Capability checking is delegated to the platform's RBAC service in
	// deployment; standalone runs grant everything.
	var caps schedule.CapabilityChecker = schedule.AllowAll{}

	// Wire the lifecycle services.
	detector := schedule.NewCollisionDetector(store)
	handler := &api.Handler{
		Rotas:       schedule.NewRotaService(store, caps),
		Shifts:      schedule.NewShiftService(store, store, store, caps, notifier),
		Assignments: schedule.NewAssignmentService(store, store, detector, caps, notifier),
		Leave:       leave.NewService(store, detector, caps, notifier),
		Punches:     timeclock.NewPunchService(store, store),
		Corrections: timeclock.NewCorrectionService(store, store, store, caps),
		Compliance:  compliance.NewService(store, store, store, store, caps),

		RotaStore:       store,
		ShiftStore:      store,
		AssignmentStore: store,
		LeaveStore:      store,
		EventStore:      store,
		CorrectionStore: store,
		ViolationStore:  store,
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitPerSecond,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		CacheTTL:       time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
