package capture

import (
	"context"
	"fmt"

	"NetProfiler/internal/config"
	"NetProfiler/internal/fingerprint"
	"NetProfiler/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

const defaultSnapshotLen = 1600

// PcapSource drives a live pcap capture loop and feeds every packet
// through an Extractor. It implements the Source interface; the blocking
// pcap read loop stays confined to the bridge's dedicated goroutine.
type PcapSource struct {
	iface     string
	filter    string
	snaplen   int32
	promisc   bool
	extractor fingerprint.Extractor
	onMatch   func(pkt gopacket.Packet, ev model.FingerprintEvent)
}

// OnMatch installs a hook invoked for every packet that yields a
// fingerprint event, before the event is emitted. Used to tee matched
// packets into a local journal. Must be set before Run.
func (s *PcapSource) OnMatch(fn func(pkt gopacket.Packet, ev model.FingerprintEvent)) {
	s.onMatch = fn
}

// NewPcapSource creates a live capture source for the configured interface.
func NewPcapSource(cfg config.CaptureConfig, extractor fingerprint.Extractor) *PcapSource {
	snaplen := cfg.SnapshotLen
	if snaplen <= 0 {
		snaplen = defaultSnapshotLen
	}
	return &PcapSource{
		iface:     cfg.Interface,
		filter:    cfg.BPFFilter,
		snaplen:   snaplen,
		promisc:   cfg.Promiscuous,
		extractor: extractor,
	}
}

// Name returns the capture interface name.
func (s *PcapSource) Name() string {
	return s.iface
}

// Run opens the interface and blocks reading packets until the context
// is cancelled or the capture handle fails (e.g. the interface
// disappears). Each packet may yield zero or more fingerprint events.
func (s *PcapSource) Run(ctx context.Context, emit func(model.FingerprintEvent)) error {
	handle, err := pcap.OpenLive(s.iface, s.snaplen, s.promisc, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("failed to open interface %s: %w", s.iface, err)
	}
	defer handle.Close()

	if s.filter != "" {
		if err := handle.SetBPFFilter(s.filter); err != nil {
			return fmt.Errorf("failed to set BPF filter: %w", err)
		}
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := packetSource.Packets()

	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-packets:
			if !ok {
				return fmt.Errorf("capture loop on %s ended unexpectedly", s.iface)
			}
			for _, ev := range s.extractor.Extract(packet) {
				if s.onMatch != nil {
					s.onMatch(packet, ev)
				}
				emit(ev)
			}
		}
	}
}
