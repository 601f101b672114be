package persistent

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"NetProfiler/internal/config"
	"NetProfiler/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// EventContainer holds a matched packet together with the fingerprint
// event extracted from it. The raw packet may be nil for events that did
// not originate from a live capture.
type EventContainer struct {
	RawPacket gopacket.Packet
	Event     *model.FingerprintEvent
}

// Worker manages a pool of goroutines for journaling fingerprint events
// to disk. The journal is a durable local record of what a collector
// observed, independent of whether the NATS link was up at the time.
type Worker struct {
	eventChan chan *EventContainer
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewWorker creates and starts a new journal worker pool.
func NewWorker(cfg config.JournalConfig) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	w := &Worker{
		eventChan: make(chan *EventContainer, bufferSize),
		stopChan:  make(chan struct{}),
	}

	w.start(cfg)
	return w, nil
}

func (w *Worker) start(cfg config.JournalConfig) {
	file, err := w.createOutputFile(cfg)
	if err != nil {
		log.Fatalf("Journal: Failed to create output file: %v", err)
	}

	var workerFunc func(file *os.File)
	switch cfg.Encoding {
	case "gob":
		workerFunc = w.runGobWorker
	case "text":
		workerFunc = w.runTextWorker
	case "pcap":
		// Matched packets come off a live Ethernet capture; the link
		// type is not plumbed through, so Ethernet is assumed.
		pcapWriter := pcapgo.NewWriter(file)
		if err := pcapWriter.WriteFileHeader(1600, layers.LinkTypeEthernet); err != nil {
			log.Fatalf("Journal (pcap): Failed to write file header: %v", err)
		}
		workerFunc = w.runPcapWorker(pcapWriter)
	default:
		log.Printf("Journal: Unknown encoding '%s', workers will not start.", cfg.Encoding)
		file.Close()
		return
	}

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1 // single writer keeps the journal in arrival order
	}

	w.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer w.wg.Done()
			workerFunc(file)
		}()
	}

	go func() {
		<-w.stopChan
		close(w.eventChan)
		w.wg.Wait()
		if err := file.Close(); err != nil {
			log.Printf("Journal: Error closing file: %v", err)
		}
		log.Println("Journal worker stopped and file closed.")
	}()

	log.Printf("Journal worker started with %d goroutines, encoding: %s, writing to: %s", numWorkers, cfg.Encoding, file.Name())
}

func (w *Worker) createOutputFile(cfg config.JournalConfig) (*os.File, error) {
	ext := ".log"
	switch cfg.Encoding {
	case "gob":
		ext = ".gob"
	case "pcap":
		ext = ".pcap"
	}
	fileName := fmt.Sprintf("%s%s", time.Now().Format("2006-01-02_15-04-05"), ext)
	filePath := filepath.Join(cfg.Path, fileName)
	return os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY, 0644)
}

func (w *Worker) runGobWorker(file *os.File) {
	encoder := gob.NewEncoder(file)
	for container := range w.eventChan {
		if err := encoder.Encode(container.Event); err != nil {
			log.Printf("Journal (gob): Error encoding event: %v", err)
		}
	}
}

func (w *Worker) runTextWorker(file *os.File) {
	writer := bufio.NewWriter(file)
	for container := range w.eventChan {
		ev := container.Event
		line := fmt.Sprintf("%s - %s [%s]%s\n",
			ev.ObservedAt.Format("2006-01-02 15:04:05.000"),
			ev.Key,
			ev.Kind,
			summarize(ev),
		)
		if _, err := writer.WriteString(line); err != nil {
			log.Printf("Journal (text): Error writing event: %v", err)
		}
	}
	writer.Flush()
}

// summarize renders the kind-specific part of a text journal line.
func summarize(ev *model.FingerprintEvent) string {
	switch {
	case ev.TCP != nil:
		return fmt.Sprintf(" os=%s sig=%s", ev.TCP.OS, ev.TCP.Signature)
	case ev.HTTP != nil:
		return fmt.Sprintf(" browser=%s", ev.HTTP.Browser)
	case ev.TLS != nil:
		return fmt.Sprintf(" ja4=%s sni=%s", ev.TLS.JA4, ev.TLS.SNI)
	}
	return ""
}

func (w *Worker) runPcapWorker(pcapWriter *pcapgo.Writer) func(*os.File) {
	return func(file *os.File) {
		for container := range w.eventChan {
			if container.RawPacket == nil {
				continue
			}
			if err := pcapWriter.WritePacket(container.RawPacket.Metadata().CaptureInfo, container.RawPacket.Data()); err != nil {
				log.Printf("Journal (pcap): Error writing packet: %v", err)
			}
		}
	}
}

// Stop gracefully shuts down the worker pool.
func (w *Worker) Stop() {
	close(w.stopChan)
}

// Enqueue sends an event container to the worker channel. The journal is
// best-effort; when the channel is full the event is dropped rather than
// stalling the capture path.
func (w *Worker) Enqueue(container *EventContainer) {
	select {
	case w.eventChan <- container:
	default:
		log.Println("Journal: Channel is full, dropping event.")
	}
}
