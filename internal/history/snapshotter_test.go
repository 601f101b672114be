package history

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"NetProfiler/internal/model"
)

func sampleProfiles() []*model.Profile {
	now := time.Now()
	return []*model.Profile{
		{
			ID:        "10.0.0.1",
			FirstSeen: now.Add(-time.Minute),
			LastSeen:  now,
			TCP:       &model.TCPSignature{OS: "Linux", Quality: 0.9},
			HTTP:      &model.HTTPSignature{Browser: "Chrome"},
			TLS:       &model.TLSFingerprint{JA4: "t13d1516h2_8daaf6152771_b0da82dd1658"},
		},
		{
			ID:        "10.0.0.2",
			FirstSeen: now,
			LastSeen:  now,
			TCP:       &model.TCPSignature{OS: "Windows", Quality: 0.7},
		},
	}
}

func TestGobWriter_WriteSnapshot(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "history_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	writer := NewGobWriter(tmpDir, time.Minute)
	timestamp := time.Now()
	if err := writer.Write(sampleProfiles(), timestamp); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	snapshotDir := filepath.Join(tmpDir, timestamp.Format("2006-01-02_15-04-05"))

	dataPath := filepath.Join(snapshotDir, "profiles.dat")
	file, err := os.Open(dataPath)
	if err != nil {
		t.Fatalf("profiles.dat was not created: %v", err)
	}
	defer file.Close()

	var decoded []*model.Profile
	if err := gob.NewDecoder(file).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode profiles.dat: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("Expected 2 profiles in snapshot, got %d", len(decoded))
	}
	if decoded[0].TCP == nil || decoded[0].TCP.OS != "Linux" {
		t.Errorf("Decoded profile lost its tcp signature: %+v", decoded[0])
	}

	summaryBytes, err := os.ReadFile(filepath.Join(snapshotDir, "summary.json"))
	if err != nil {
		t.Fatalf("Failed to read summary.json: %v", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(summaryBytes, &summary); err != nil {
		t.Fatalf("Failed to unmarshal summary.json: %v", err)
	}
	if summary.TotalProfiles != 2 {
		t.Errorf("Expected 2 total profiles in summary, got %d", summary.TotalProfiles)
	}
	if summary.CompleteProfiles != 1 {
		t.Errorf("Expected 1 complete profile in summary, got %d", summary.CompleteProfiles)
	}
}

func TestGobWriter_SkipsEmptySnapshot(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "history_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	writer := NewGobWriter(tmpDir, time.Minute)
	if err := writer.Write(nil, time.Now()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	dirs, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("Empty snapshot should not create a directory, found %d entries", len(dirs))
	}
}

// countingWriter records writes so the shutdown behavior can be observed.
type countingWriter struct {
	mu       sync.Mutex
	writes   int
	profiles int
}

func (w *countingWriter) Write(profiles []*model.Profile, _ time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.profiles = len(profiles)
	return nil
}

func (w *countingWriter) GetInterval() time.Duration { return time.Hour }

func TestSnapshotter_FinalWriteOnStop(t *testing.T) {
	writer := &countingWriter{}
	snap := NewSnapshotter([]model.Writer{writer}, func() []*model.Profile {
		return sampleProfiles()
	})

	snap.Start()
	snap.Stop()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.writes != 1 {
		t.Fatalf("Expected exactly one final write on stop, got %d", writer.writes)
	}
	if writer.profiles != 2 {
		t.Errorf("Final write should carry the full table, got %d profiles", writer.profiles)
	}
}
