package history

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"NetProfiler/internal/model"
)

// SummaryData holds the metadata for a snapshot, internal to the writer.
type SummaryData struct {
	TotalProfiles    int    `json:"total_profiles"`
	CompleteProfiles int    `json:"complete_profiles"`
	Timestamp        string `json:"timestamp"`
}

// GobWriter writes profile snapshots to disk in gob format. It implements
// the model.Writer interface.
type GobWriter struct {
	rootPath string
	interval time.Duration
}

// NewGobWriter creates a new file-based history writer.
func NewGobWriter(rootPath string, interval time.Duration) model.Writer {
	return &GobWriter{rootPath: rootPath, interval: interval}
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *GobWriter) GetInterval() time.Duration {
	return w.interval
}

// Write serializes the profile table into a timestamped directory:
// profiles.dat carries the gob-encoded profiles, summary.json the counts.
func (w *GobWriter) Write(profiles []*model.Profile, timestamp time.Time) error {
	if len(profiles) == 0 {
		return nil
	}

	snapshotDir := filepath.Join(w.rootPath, timestamp.Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(snapshotDir, "profiles.dat")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(profiles); err != nil {
		return fmt.Errorf("failed to encode profiles to gob for file '%s': %w", filePath, err)
	}

	complete := 0
	for _, p := range profiles {
		if p.Complete() {
			complete++
		}
	}
	summary := SummaryData{
		TotalProfiles:    len(profiles),
		CompleteProfiles: complete,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
	summaryFilePath := filepath.Join(snapshotDir, "summary.json")
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}
