package main

import (
	"context"
	"log"

	"ai-support-router-be/internal/bootstrap"
	"ai-support-router-be/internal/config"
	"ai-support-router-be/internal/server"
	"ai-support-router-be/internal/tracer"
)

func main() {
	// 1. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 2. Load Configuration
	cfg := config.Load()

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Logger.Sync()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
