package probe

import (
	"encoding/json"
	"fmt"
	"log"

	"NetProfiler/internal/config"
	"NetProfiler/internal/model"

	"github.com/nats-io/nats.go"
)

// Publisher sends fingerprint events from a collector to a NATS subject tree.
// Each event is published on <subject>.<kind>, so a server can subscribe to
// all kinds at once or cherry-pick a single source.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a fingerprint event to JSON and publishes it on the
// kind-specific subject.
func (p *Publisher) Publish(ev model.FingerprintEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.nc.Publish(fmt.Sprintf("%s.%s", p.subject, ev.Kind), data)
}

// Connected reports whether the underlying NATS connection is alive.
func (p *Publisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
