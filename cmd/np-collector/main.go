package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"NetProfiler/internal/capture"
	"NetProfiler/internal/config"
	"NetProfiler/internal/fingerprint"
	"NetProfiler/internal/model"
	"NetProfiler/internal/probe"
	"NetProfiler/internal/probe/persistent"

	"github.com/google/gopacket"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	iface := flag.String("iface", "", "Capture interface override (takes precedence over config).")
	healthAddr := flag.String("health", "", "Optional listen address for the health endpoint.")
	flag.Parse()

	log.Println("Starting np-collector...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if cfg.Capture.Interface == "" {
		log.Fatalf("No capture interface configured; set capture.interface or pass -iface.")
	}

	// 2. Connect the NATS publisher
	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	// 3. Build the capture pipeline
	source := capture.NewPcapSource(cfg.Capture, fingerprint.NewTCPExtractor())

	var journal *persistent.Worker
	if cfg.Journal.Enabled {
		journal, err = persistent.NewWorker(cfg.Journal)
		if err != nil {
			log.Fatalf("Failed to start journal: %v", err)
		}
		source.OnMatch(func(pkt gopacket.Packet, ev model.FingerprintEvent) {
			journal.Enqueue(&persistent.EventContainer{RawPacket: pkt, Event: &ev})
		})
	}

	bridge := capture.NewBridge(cfg.Capture.SizeOfEventChannel)

	ctx, cancel := context.WithCancel(context.Background())
	bridge.Run(ctx, source)
	log.Printf("Capture started on interface %s.", source.Name())

	// 4. Optional health endpoint
	if *healthAddr != "" {
		go serveHealth(*healthAddr, bridge, pub)
	}

	// 5. Drain bridge events into NATS
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		published := 0
		for ev := range bridge.Events() {
			if err := pub.Publish(ev); err != nil {
				log.Printf("Failed to publish event: %v", err)
				continue
			}
			published++
			if published%1000 == 0 {
				log.Printf("%d events published...", published)
			}
		}
	}()

	// 6. Wait for a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")

	cancel()
	bridge.Wait()
	// Buffered events are still published before the connection drains.
	<-drained
	if journal != nil {
		journal.Stop()
	}
	if dropped := bridge.Dropped(); dropped > 0 {
		log.Printf("%d events were dropped under overload during this run.", dropped)
	}
	log.Println("Shutdown complete.")
}

// serveHealth exposes the collector's liveness: whether the capture loop
// is still up, how many events were evicted under overload, and whether
// the NATS link is connected.
func serveHealth(addr string, bridge *capture.Bridge, pub *probe.Publisher) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		var captureErr string
		if err := bridge.Err(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			captureErr = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         status,
			"capture_error":  captureErr,
			"events_dropped": bridge.Dropped(),
			"nats_connected": pub.Connected(),
		})
	})
	log.Printf("Health endpoint listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Health endpoint failed: %v", err)
	}
}
