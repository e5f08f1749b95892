package pcap

import (
	"fmt"
	"io"
	"net"

	"FlowRank/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapshotLen = 65536

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// Writer writes flow records as Ethernet/IPv4/TCP packets to a pcap stream.
type Writer struct {
	w    *pcapgo.Writer
	opts gopacket.SerializeOptions
	buf  gopacket.SerializeBuffer
}

// NewWriter writes the pcap file header to out.
func NewWriter(out io.Writer) (*Writer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(snapshotLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{
		w:    w,
		opts: gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true},
		buf:  gopacket.NewSerializeBuffer(),
	}, nil
}

// WriteRecord writes one TCP packet carrying rec's endpoints, with rec.Seq as
// the TCP sequence number and rec.Timestamp as the capture time.
func (w *Writer) WriteRecord(rec model.FlowRecord, payload []byte) error {
	src := model.IPv4(rec.FourTuple.SrcIP).As4()
	dst := model.IPv4(rec.FourTuple.DstIP).As4()

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		SrcIP:    net.IP(src[:]),
		DstIP:    net.IP(dst[:]),
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(rec.FourTuple.SrcPort),
		DstPort: layers.TCPPort(rec.FourTuple.DstPort),
		Seq:     rec.Seq,
		ACK:     true,
		Window:  14600,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	if err := gopacket.SerializeLayers(w.buf, w.opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}
	data := w.buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: rec.Timestamp, CaptureLength: len(data), Length: len(data)}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}
