package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/hitl-relay/api"
	"github.com/xiaot623/hitl-relay/auth"
	"github.com/xiaot623/hitl-relay/chatclient"
	"github.com/xiaot623/hitl-relay/config"
	"github.com/xiaot623/hitl-relay/directory"
	"github.com/xiaot623/hitl-relay/linkcode"
	"github.com/xiaot623/hitl-relay/metrics"
	"github.com/xiaot623/hitl-relay/policy"
	"github.com/xiaot623/hitl-relay/routing"
	"github.com/xiaot623/hitl-relay/store"
	"github.com/xiaot623/hitl-relay/sweeper"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: no .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	log.Printf("Starting relay...")
	log.Printf("Mode: %s", cfg.Mode)
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	if cfg.DatabaseURL != "" {
		log.Printf("Database: %s", cfg.DatabaseURL)
	} else {
		log.Printf("Database: in-memory")
	}

	// Initialize store
	var db store.Store
	var err error
	if cfg.DatabaseURL != "" {
		db, err = store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize store: %v", err)
		}
	} else {
		db = store.NewMemoryStore()
	}
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize link code store
	var codes linkcode.Store
	if cfg.RedisAddr != "" {
		codes = linkcode.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.LinkCodeTTL)
		log.Printf("Link codes: redis at %s", cfg.RedisAddr)
	} else {
		memCodes := linkcode.NewMemoryStore(cfg.LinkCodeTTL)
		go memCodes.RunSweeper(ctx, time.Minute)
		codes = memCodes
	}

	// Initialize user directory and routing strategy
	dir := directory.NewMemoryDirectory(cfg.UserDirectory)
	var strategy routing.Strategy
	var verifier auth.Verifier
	switch cfg.Mode {
	case config.ModeMulti:
		strategy = &routing.MultiUser{
			Directory:         dir,
			Codes:             codes,
			FallbackChannelID: cfg.AllowedChannelID,
		}
		verifier = &auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	case config.ModeSingle:
		strategy = &routing.SingleUser{AllowedChannelID: cfg.AllowedChannelID}
		verifier = &auth.StaticTokenVerifier{Token: cfg.APIToken}
	default:
		log.Fatalf("Unknown mode: %s", cfg.Mode)
	}

	// Initialize chat client
	chatClient := chatclient.New(cfg.ChatBaseURL, cfg.ChatBotToken)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize handler
	h := api.NewHandler(db, strategy, dir, codes, chatClient, policyEngine, cfg)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e, auth.Middleware(verifier))

	// Metrics server
	metrics.StartServer(cfg.MetricsPort, "/metrics")

	// Expiry sweeper
	if cfg.SweepInterval > 0 {
		go sweeper.New(db, cfg.SweepInterval, cfg.QuestionTTL).Run(ctx)
		log.Printf("Expiry sweep every %s", cfg.SweepInterval)
	}

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Relay started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down relay...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Relay stopped")
}
