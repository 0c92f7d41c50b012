package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"
	"rag-chat-be/internal/server"
	"rag-chat-be/internal/tracer"
	"rag-chat-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, cfg.App.OtelEndpoint)
	defer func() { _ = shutdownTracer(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Database
	gormDB, err := database.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if cfg.Database.Driver == database.DriverSqlite {
		if err := database.AutoMigrate(gormDB, cfg.Database.Driver); err != nil {
			log.Panicf("Unable to migrate sqlite schema: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer container.Close()

	srv := server.New(cfg, container)

	// 5. Run background services and the server until a signal arrives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Println("Background: Starting Consumer Service...")
		return container.ConsumerService.Consume(gctx)
	})
	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Printf("Server stopped: %v", err)
	}
}
