package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"NetProfiler/internal/assembler"
	"NetProfiler/internal/fingerprint"
	"NetProfiler/internal/model"
	"NetProfiler/internal/store"
	"NetProfiler/pkg/pcap"
)

func main() {
	// 1. Get pcap file path from command-line arguments
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/pcap-analyzer/main.go <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := os.Args[1]

	// 2. Build an offline pipeline: no NATS, no server, just the table
	asm := assembler.New(store.New(0))

	reader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()
	log.Printf("Reading packets from '%s'...", pcapFilePath)

	// 3. Replay the capture through the extractor into the assembler
	events := make(chan model.FingerprintEvent, 1024)
	go reader.ReadEvents(fingerprint.NewTCPExtractor(), events)
	asm.Consume(events)
	log.Println("Finished reading all packets from pcap file.")

	// 4. Print the resulting profile table
	profiles := asm.Profiles(store.Filter{})
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(profiles); err != nil {
		log.Fatalf("Failed to encode profiles: %v", err)
	}

	stats := asm.Stats()
	log.Printf("Done: %d events, %d profiles (%d with tcp signatures).",
		asm.Ingested(), stats.TotalProfiles, stats.TCPProfiles)
}
