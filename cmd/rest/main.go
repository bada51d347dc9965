package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"
	"rag-chat-be/internal/server"
	"rag-chat-be/internal/tracer"
	"rag-chat-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer
	cfg := config.Load()
	shutdownTracer := tracer.InitTracer(cfg.Tracing, "chat-gateway")
	defer shutdownTracer(context.Background())

	// 1. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to bootstrap: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Start Background Services
	go container.WebSocketHub.Run(ctx)
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}

	// 4. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		_ = srv.Shutdown()
	}()

	// 5. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
