package model

import (
	"fmt"
	"net"
	"time"
)

// SourceKind identifies which fingerprint kind an event carries.
type SourceKind string

const (
	SourceTCP  SourceKind = "tcp"
	SourceHTTP SourceKind = "http"
	SourceTLS  SourceKind = "tls"
)

// FingerprintEvent is one observation of a single signature kind for one
// client. Exactly the payload matching Kind is set; the others are nil.
// Key is the client IP address, the sole correlation key.
type FingerprintEvent struct {
	Kind       SourceKind      `json:"kind"`
	Key        string          `json:"key"`
	ObservedAt time.Time       `json:"observed_at"`
	TCP        *TCPSignature   `json:"tcp,omitempty"`
	HTTP       *HTTPSignature  `json:"http,omitempty"`
	TLS        *TLSFingerprint `json:"tls,omitempty"`
}

// Validate rejects malformed events before they reach the profile store.
func (e FingerprintEvent) Validate() error {
	if net.ParseIP(e.Key) == nil {
		return fmt.Errorf("invalid connection key %q: not an IP address", e.Key)
	}
	if e.ObservedAt.IsZero() {
		return fmt.Errorf("event for %s has no observation time", e.Key)
	}
	switch e.Kind {
	case SourceTCP:
		if e.TCP == nil {
			return fmt.Errorf("tcp event for %s has no tcp payload", e.Key)
		}
	case SourceHTTP:
		if e.HTTP == nil {
			return fmt.Errorf("http event for %s has no http payload", e.Key)
		}
	case SourceTLS:
		if e.TLS == nil {
			return fmt.Errorf("tls event for %s has no tls payload", e.Key)
		}
	default:
		return fmt.Errorf("unknown source kind %q", e.Kind)
	}
	return nil
}
