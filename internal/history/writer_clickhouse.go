package history

import (
	"context"
	"fmt"
	"log"
	"time"

	"NetProfiler/internal/config"
	"NetProfiler/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS profile_history (
    Timestamp    DateTime,
    IP           String,
    FirstSeen    DateTime,
    LastSeen     DateTime,
    Completeness UInt8,
    Quality      Float64,
    TCPOS        Nullable(String),
    TCPSignature Nullable(String),
    TCPQuality   Nullable(Float64),
    Browser      Nullable(String),
    UserAgent    Nullable(String),
    HTTPQuality  Nullable(Float64),
    JA4          Nullable(String),
    SNI          Nullable(String),
    TLSQuality   Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (IP, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
// Each snapshot appends one row per profile to the profile_history table,
// giving a queryable timeline of how each client's profile evolved.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, interval: interval}, nil
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Write inserts the current profile table into profile_history.
func (w *ClickHouseWriter) Write(profiles []*model.Profile, timestamp time.Time) error {
	if len(profiles) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO profile_history")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, p := range profiles {
		var tcpOS, tcpSig, browser, userAgent, ja4, sni interface{}
		var tcpQ, httpQ, tlsQ interface{}
		if p.TCP != nil {
			tcpOS, tcpSig, tcpQ = p.TCP.OS, p.TCP.Signature, p.TCP.Quality
		}
		if p.HTTP != nil {
			browser, userAgent, httpQ = p.HTTP.Browser, p.HTTP.UserAgent, p.HTTP.Quality
		}
		if p.TLS != nil {
			ja4, sni, tlsQ = p.TLS.JA4, p.TLS.SNI, p.TLS.Quality
		}

		err = batch.Append(
			timestamp,
			p.ID,
			p.FirstSeen,
			p.LastSeen,
			uint8(p.Completeness()),
			p.Quality(),
			tcpOS,
			tcpSig,
			tcpQ,
			browser,
			userAgent,
			httpQ,
			ja4,
			sni,
			tlsQ,
		)
		if err != nil {
			return fmt.Errorf("failed to append profile to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d profiles to ClickHouse", len(profiles))
	return nil
}
