package pcap

import (
	"NetProfiler/internal/fingerprint"
	"NetProfiler/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// Reader reads packets from a pcap file.
type Reader struct {
	handle *pcap.Handle
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadEvents runs every packet in the file through the extractor and
// sends the resulting fingerprint events to the provided channel. The
// channel is closed when the file is exhausted. Packets that yield no
// events are skipped silently; most traffic is not a fingerprintable
// handshake.
func (r *Reader) ReadEvents(extractor fingerprint.Extractor, out chan<- model.FingerprintEvent) {
	defer close(out)

	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		for _, ev := range extractor.Extract(packet) {
			out <- ev
		}
	}
}
