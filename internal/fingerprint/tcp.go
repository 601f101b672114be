package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"NetProfiler/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// initialTTLs are the common initial TTL values used to estimate the
// sender's hop distance.
var initialTTLs = []uint8{32, 64, 128, 255}

// TCPExtractor derives a TCP stack signature from client SYN packets.
// Only the initial SYN is fingerprinted; SYN-ACKs describe the server
// side and everything else carries no handshake options worth reading.
type TCPExtractor struct{}

// NewTCPExtractor returns an extractor for TCP SYN signatures.
func NewTCPExtractor() *TCPExtractor {
	return &TCPExtractor{}
}

// Extract returns a single tcp event for a client SYN, or nothing.
func (e *TCPExtractor) Extract(packet gopacket.Packet) []model.FingerprintEvent {
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return nil
	}
	tcp := tcpLayer.(*layers.TCP)
	if !tcp.SYN || tcp.ACK {
		return nil
	}

	var (
		srcIP   string
		version string
		ttl     uint8
		df      bool
		ipID    uint16
	)

	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		srcIP = ip.SrcIP.String()
		version = "4"
		ttl = ip.TTL
		df = ip.Flags&layers.IPv4DontFragment != 0
		ipID = ip.Id
	case *layers.IPv6:
		srcIP = ip.SrcIP.String()
		version = "6"
		ttl = ip.HopLimit
	default:
		return nil
	}

	sig := &model.TCPSignature{
		Version:    version,
		InitialTTL: formatInitialTTL(ttl),
		WindowSize: strconv.Itoa(int(tcp.Window)),
	}

	var layout []string
	var optLen int
	for _, opt := range tcp.Options {
		optLen += optionLength(opt)
		switch opt.OptionType {
		case layers.TCPOptionKindMSS:
			layout = append(layout, "mss")
			if len(opt.OptionData) >= 2 {
				sig.MSS = uint16(opt.OptionData[0])<<8 | uint16(opt.OptionData[1])
			}
		case layers.TCPOptionKindWindowScale:
			layout = append(layout, "ws")
			if len(opt.OptionData) >= 1 {
				sig.WindowScale = opt.OptionData[0]
			}
		case layers.TCPOptionKindSACKPermitted:
			layout = append(layout, "sok")
		case layers.TCPOptionKindTimestamps:
			layout = append(layout, "ts")
		case layers.TCPOptionKindNop:
			layout = append(layout, "nop")
		case layers.TCPOptionKindEndList:
			layout = append(layout, "eol")
		default:
			layout = append(layout, fmt.Sprintf("?%d", opt.OptionType))
		}
	}
	sig.OptionsLayout = strings.Join(layout, ",")

	var quirks []string
	if df {
		quirks = append(quirks, "df")
		if ipID != 0 {
			quirks = append(quirks, "id+")
		}
	}
	if tcp.ECE || tcp.CWR || tcp.NS {
		quirks = append(quirks, "ecn")
	}
	if tcp.Seq == 0 {
		quirks = append(quirks, "seq-")
	}
	sig.Quirks = strings.Join(quirks, ",")

	payloadClass := "0"
	if len(tcp.LayerPayload()) > 0 {
		payloadClass = "+"
	}
	sig.Signature = fmt.Sprintf("%s:%s:%d:%d:%s,%d:%s:%s:%s",
		sig.Version, sig.InitialTTL, optLen, sig.MSS, sig.WindowSize,
		sig.WindowScale, sig.OptionsLayout, sig.Quirks, payloadClass)

	observed := time.Now()
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		observed = meta.Timestamp
	}

	return []model.FingerprintEvent{{
		Kind:       model.SourceTCP,
		Key:        srcIP,
		ObservedAt: observed,
		TCP:        sig,
	}}
}

// formatInitialTTL reports the guessed initial TTL and, when the packet
// has already crossed routers, the observed hop distance.
func formatInitialTTL(observed uint8) string {
	for _, initial := range initialTTLs {
		if observed <= initial {
			if initial == observed {
				return strconv.Itoa(int(initial))
			}
			return fmt.Sprintf("%d (%d hops)", initial, initial-observed)
		}
	}
	return strconv.Itoa(int(observed))
}

// optionLength returns the wire length of a TCP option.
func optionLength(opt layers.TCPOption) int {
	switch opt.OptionType {
	case layers.TCPOptionKindNop, layers.TCPOptionKindEndList:
		return 1
	default:
		return 2 + len(opt.OptionData)
	}
}
