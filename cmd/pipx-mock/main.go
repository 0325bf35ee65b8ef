package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pipx-client/internal/app"
	"pipx-client/internal/config"
	"pipx-client/internal/mockapi"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	cfg := config.Load()

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("[MAIN] ❌ Failed to build logger: %v", err)
	}
	defer logger.Sync()

	srv, err := mockapi.NewServer(cfg, logger)
	if err != nil {
		log.Fatalf("[MOCK] ❌ Failed to build server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Run(ctx)

	// Run server in a separate goroutine so we can listen for shutdown signals
	go func() {
		log.Printf("[MOCK] 🚀 PipX mock API running on %s", cfg.Mock.HTTPAddr)
		if cfg.Mock.Seed {
			log.Printf("[MOCK] Demo accounts: %s / %s (password %q)",
				mockapi.DemoProviderEmail, mockapi.DemoUserEmail, mockapi.DemoPassword)
		}
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("[MOCK] ❌ Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[MOCK] 🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MOCK] Shutdown error: %v", err)
	}

	log.Println("[MOCK] ✅ Server stopped gracefully")
}
