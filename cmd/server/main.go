/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rewards platform server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment, -db and -port flags win)
  2. Initialize SQLite store
  3. Wire services (rewards, withdrawals) and the API handler
  4. Optionally seed demo data
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Environment configuration
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

	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/api"
	"github.com/kaamkaro/rewards-engine/config"
	"github.com/kaamkaro/rewards-engine/ledger"
	"github.com/kaamkaro/rewards-engine/rewards"
	"github.com/kaamkaro/rewards-engine/store/sqlite"
	"github.com/kaamkaro/rewards-engine/withdrawal"
)

func main() {
	cfg := config.Load()

	// Flags override the environment for quick local runs.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire services
	locks := ledger.NewAccountLocks()
	rewardSvc := rewards.NewService(store, rewards.DefaultRules(), locks)
	withdrawalSvc := withdrawal.NewService(store, withdrawal.DefaultLimits(), locks)
	tokens := api.NewTokenIssuer(cfg.JWTSecret, cfg.TokenExpiry)
	handler := api.NewHandler(store, rewardSvc, withdrawalSvc, tokens)

	if cfg.SeedDemo {
		if err := seedDemo(context.Background(), store, rewardSvc); err != nil {
			log.Printf("Warning: demo seeding failed: %v", err)
		}
	}

	// Create router
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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

// seedDemo populates an empty database with demo tasks and an admin
// account. The admin goes through the normal registration path so its
// balance reconciles against the ledger like any other account.
func seedDemo(ctx context.Context, store *sqlite.Store, svc *rewards.Service) error {
	existing, err := store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil // already seeded
	}

	admin, err := svc.Register(ctx, rewards.RegisterInput{
		Email:    "admin@kaamkaro.local",
		Password: "admin123",
		Name:     "Platform Admin",
	})
	if err != nil {
		return err
	}
	isAdmin := true
	if _, err := svc.UpdateAccount(ctx, admin.ID, rewards.AccountPatch{IsAdmin: &isAdmin}); err != nil {
		return err
	}

	demoTasks := []rewards.CreateTaskInput{
		{Title: "Watch a sponsored video", Reward: decimal.NewFromInt(15), Category: "video", Duration: 120, DailyLimit: 3},
		{Title: "Complete a survey", Reward: decimal.NewFromInt(40), Category: "survey", Duration: 300, DailyLimit: 1},
		{Title: "Install a partner app", Reward: decimal.NewFromInt(60), Category: "install", Duration: 180, DailyLimit: 1},
		{Title: "Daily quiz", Reward: decimal.NewFromInt(10), Category: "quiz", Duration: 60, DailyLimit: 5},
	}
	for _, in := range demoTasks {
		if _, err := svc.CreateTask(ctx, in); err != nil {
			return err
		}
	}

	log.Printf("Seeded %d demo tasks and admin account %s", len(demoTasks), admin.Email)
	return nil
}
