package history

import (
	"log"
	"sync"
	"time"

	"NetProfiler/internal/config"
	"NetProfiler/internal/model"
)

// Snapshotter drives periodic profile snapshots to one or more writers.
// Each writer gets its own goroutine ticking at its configured interval,
// and every writer receives a final snapshot on shutdown.
type Snapshotter struct {
	source  func() []*model.Profile
	writers []model.Writer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWriters builds the enabled writers from configuration. Writers that
// fail to initialize are skipped with a warning so one bad backend does
// not keep the server from starting.
func NewWriters(defs []config.HistoryWriterDef) []model.Writer {
	writers := make([]model.Writer, 0, len(defs))
	for _, writerDef := range defs {
		if !writerDef.Enabled {
			continue
		}

		interval, err := time.ParseDuration(writerDef.SnapshotInterval)
		if err != nil {
			log.Printf("Warning: invalid snapshot_interval for writer type '%s': %v, skipping.", writerDef.Type, err)
			continue
		}

		var writer model.Writer
		switch writerDef.Type {
		case "gob":
			writer = NewGobWriter(writerDef.Gob.RootPath, interval)
		case "clickhouse":
			writer, err = NewClickHouseWriter(writerDef.ClickHouse, interval)
			if err != nil {
				log.Printf("Warning: failed to create writer type '%s': %v, skipping.", writerDef.Type, err)
				continue
			}
		default:
			log.Printf("Warning: unknown writer type '%s' in config, skipping.", writerDef.Type)
			continue
		}
		writers = append(writers, writer)
	}
	return writers
}

// NewSnapshotter creates a snapshotter over the given profile source.
func NewSnapshotter(writers []model.Writer, source func() []*model.Profile) *Snapshotter {
	return &Snapshotter{
		source:  source,
		writers: writers,
		done:    make(chan struct{}),
	}
}

// Start launches a dedicated snapshot loop per writer.
func (s *Snapshotter) Start() {
	for _, writer := range s.writers {
		s.wg.Add(1)
		go s.runSnapshotter(writer)
		log.Printf("Started history snapshotter with interval %s.", writer.GetInterval())
	}
}

func (s *Snapshotter) runSnapshotter(writer model.Writer) {
	defer s.wg.Done()
	interval := writer.GetInterval()
	if interval <= 0 {
		log.Printf("Invalid interval %s for writer, snapshotter will not run.", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.takeSnapshot(writer)
		case <-s.done:
			s.takeSnapshot(writer)
			return
		}
	}
}

func (s *Snapshotter) takeSnapshot(writer model.Writer) {
	timestamp := time.Now()
	if err := writer.Write(s.source(), timestamp); err != nil {
		log.Printf("Error writing profile snapshot: %v", err)
	}
}

// Stop triggers a final snapshot on every writer and waits for the loops
// to drain.
func (s *Snapshotter) Stop() {
	close(s.done)
	s.wg.Wait()
	log.Println("History snapshotter stopped.")
}
