// marker-align serves the camera marker alignment engine over HTTP.
// A client (the capture app) creates a session, streams detector output
// and device tilt samples to it, and reads back alignment guidance,
// recording warnings and the post-recording quality verdict.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stillframe/marker.align/api"
	"github.com/stillframe/marker.align/db"
	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/monitoring"
	"github.com/stillframe/marker.align/internal/session"
	"github.com/stillframe/marker.align/internal/timeutil"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "marker_align.db", "SQLite database path")
	configPath = flag.String("config", "", "Tuning config JSON (defaults to built-in values)")
	verbose    = flag.Bool("verbose", false, "Enable per-frame debug logging")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.Verbose = *verbose

	// The Get* accessors fall back to built-in defaults for any field a
	// config file leaves out, so no file at all is a valid deployment.
	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	sessions := session.NewManager(cfg, timeutil.RealClock{})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(sessions, store, cfg).ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
