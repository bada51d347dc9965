package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"
	"rag-chat-be/internal/tracer"
	"rag-chat-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer(cfg.Tracing, "session-handler")
	defer shutdownTracer(context.Background())

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies
	container, err := bootstrap.NewSessionHandlerContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to bootstrap session handler: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		log.Fatalf("[FATAL] Failed to start session handler: %v", err)
	}
	log.Printf("✅ Session handler is serving %s", cfg.Sessions.Subject)

	<-ctx.Done()
	log.Println("Shutting down session handler...")
}
