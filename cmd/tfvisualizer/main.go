package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/env"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/router"
)

func main() {
	env.SetupEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	a, err := appctx.New(cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	app := router.NewServer(a, router.ServerOptions{
		DocsFile:  findDocsFile(),
		AccessLog: true,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(ctx)
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)); err != nil {
		log.Fatal(err)
	}
}

// findDocsFile locates the OpenAPI document from the repo root or cmd/tfvisualizer.
func findDocsFile() string {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/tfvisualizer to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		file := path + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(file); err == nil {
			return file
		}
	}
	log.Println("OpenAPI document not found, /docs/api/v1 disabled")
	return ""
}
