package model

import (
	"encoding/json"
	"time"
)

// TCPSignature is the decoded TCP stack fingerprint for one client,
// produced by a collector from SYN packets.
type TCPSignature struct {
	OS            string  `json:"os,omitempty"`
	Quality       float64 `json:"quality,omitempty"`
	Signature     string  `json:"signature,omitempty"`
	Version       string  `json:"version,omitempty"`
	InitialTTL    string  `json:"initial_ttl,omitempty"`
	MSS           uint16  `json:"mss,omitempty"`
	WindowSize    string  `json:"window_size,omitempty"`
	WindowScale   uint8   `json:"window_scale,omitempty"`
	OptionsLayout string  `json:"options_layout,omitempty"`
	Quirks        string  `json:"quirks,omitempty"`
}

// HTTPSignature is the decoded HTTP request fingerprint for one client.
type HTTPSignature struct {
	Browser   string  `json:"browser,omitempty"`
	OS        string  `json:"os,omitempty"`
	Quality   float64 `json:"quality,omitempty"`
	Signature string  `json:"signature,omitempty"`
	UserAgent string  `json:"user_agent,omitempty"`
}

// TLSFingerprint is the decoded TLS ClientHello fingerprint for one client.
// JA4 is the derived hash, JA4Raw the raw component string it was built from.
type TLSFingerprint struct {
	JA4     string  `json:"ja4"`
	JA4Raw  string  `json:"ja4_raw,omitempty"`
	SNI     string  `json:"sni,omitempty"`
	Quality float64 `json:"quality,omitempty"`
}

// Profile is the merged, per-client view of all fingerprint kinds observed
// so far. The correlation key (ID) is the client IP address. Profile values
// are treated as immutable once published by the store: an update produces
// a new Profile rather than mutating one in place.
type Profile struct {
	ID        string          `json:"id"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
	TCP       *TCPSignature   `json:"tcp,omitempty"`
	HTTP      *HTTPSignature  `json:"http,omitempty"`
	TLS       *TLSFingerprint `json:"tls,omitempty"`
}

// Completeness returns the number of populated signature fields (0-3).
func (p Profile) Completeness() int {
	n := 0
	if p.TCP != nil {
		n++
	}
	if p.HTTP != nil {
		n++
	}
	if p.TLS != nil {
		n++
	}
	return n
}

// Complete reports whether all three signature kinds have been observed.
func (p Profile) Complete() bool {
	return p.Completeness() == 3
}

// Quality returns the best match quality among the populated signatures.
func (p Profile) Quality() float64 {
	q := 0.0
	if p.TCP != nil && p.TCP.Quality > q {
		q = p.TCP.Quality
	}
	if p.HTTP != nil && p.HTTP.Quality > q {
		q = p.HTTP.Quality
	}
	if p.TLS != nil && p.TLS.Quality > q {
		q = p.TLS.Quality
	}
	return q
}

// MarshalJSON adds the derived completeness count to the serialized form.
func (p Profile) MarshalJSON() ([]byte, error) {
	type alias Profile
	return json.Marshal(struct {
		alias
		Completeness int `json:"completeness"`
	}{alias(p), p.Completeness()})
}

// Stats holds the derived counters over the profile table.
type Stats struct {
	TotalProfiles    int `json:"total_profiles"`
	TCPProfiles      int `json:"tcp_profiles"`
	HTTPProfiles     int `json:"http_profiles"`
	TLSProfiles      int `json:"tls_profiles"`
	CompleteProfiles int `json:"complete_profiles"`
}
