package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetProfiler/internal/api"
	"NetProfiler/internal/assembler"
	"NetProfiler/internal/config"
	"NetProfiler/internal/history"
	"NetProfiler/internal/hub"
	"NetProfiler/internal/model"
	"NetProfiler/internal/probe"
	"NetProfiler/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	bind := flag.String("bind", "", "Listen address override (takes precedence over config).")
	flag.Parse()

	log.Println("Starting np-server...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *bind != "" {
		cfg.Server.ListenAddr = *bind
	}
	log.Println("Configuration loaded successfully.")

	// 2. Build the profile pipeline: store -> assembler -> live hub
	st := store.New(cfg.Store.NumShards)
	asm := assembler.New(st)
	liveHub := hub.New(asm, cfg.Hub)
	asm.SetPublisher(liveHub)
	go liveHub.Run()

	// 3. Start the history snapshotters
	writers := history.NewWriters(cfg.History)
	snapshotter := history.NewSnapshotter(writers, func() []*model.Profile {
		return asm.Profiles(store.Filter{})
	})
	snapshotter.Start()

	// 4. Subscribe to collector events when NATS transport is enabled
	var sub *probe.Subscriber
	if cfg.Probe.Enabled {
		sub, err = probe.NewSubscriber(cfg.Probe)
		if err != nil {
			log.Fatalf("Failed to create subscriber: %v", err)
		}
		if err := sub.Start(func(ev model.FingerprintEvent) {
			if _, err := asm.Ingest(ev); err != nil {
				log.Printf("Dropping malformed event: %v", err)
			}
		}); err != nil {
			log.Fatalf("Subscriber failed to start: %v", err)
		}
	}

	// 5. Start the HTTP server
	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.New(asm, liveHub).Router(),
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// 6. Wait for a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping...")

	// Stop intake first so the final snapshot sees a settled table.
	if sub != nil {
		sub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	snapshotter.Stop()
	liveHub.Stop()
	log.Println("Shutdown complete.")
}
