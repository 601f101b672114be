package probe

import (
	"encoding/json"
	"fmt"
	"log"

	"NetProfiler/internal/config"
	"NetProfiler/internal/model"

	"github.com/nats-io/nats.go"
)

// EventHandler is a function that processes a received fingerprint event.
type EventHandler func(ev model.FingerprintEvent)

// Subscriber receives fingerprint events published by collectors and hands
// them to a handler. It subscribes with a wildcard so events of every kind
// arrive on a single subscription.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber connects to the configured NATS server.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject + ".>"}, nil
}

// Start subscribes to the subject tree and processes messages with the
// provided handler. Malformed or invalid events are logged and skipped so a
// misbehaving collector cannot take the subscription down.
func (s *Subscriber) Start(handler EventHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		var ev model.FingerprintEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("Error unmarshalling event on %s: %v", msg.Subject, err)
			return
		}
		if err := ev.Validate(); err != nil {
			log.Printf("Discarding invalid event on %s: %v", msg.Subject, err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for events...", s.subject)
	return nil
}

// Connected reports whether the underlying NATS connection is alive.
func (s *Subscriber) Connected() bool {
	return s.nc != nil && s.nc.IsConnected()
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
