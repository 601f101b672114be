package fingerprint

import (
	"NetProfiler/internal/model"

	"github.com/google/gopacket"
)

// Extractor turns captured packets into fingerprint events. Implementations
// decode one signature kind each; a packet that does not carry the kind
// yields no events.
type Extractor interface {
	Extract(packet gopacket.Packet) []model.FingerprintEvent
}
