package protocol

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"FlowRank/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrNotIPv4 is returned for packets without an IPv4 layer.
	ErrNotIPv4 = errors.New("not an IPv4 packet")
	// ErrNotTCP is returned for packets without a TCP layer. Only TCP carries
	// the sequence number used as the flow marker.
	ErrNotTCP = errors.New("not a TCP packet")
)

// ParsePacket uses gopacket to extract the endpoint pair and the TCP sequence
// number of a decoded packet.
func ParsePacket(packet gopacket.Packet) (model.FlowRecord, error) {
	rec := model.FlowRecord{Timestamp: time.Now()}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		rec.Timestamp = meta.Timestamp
	}

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return model.FlowRecord{}, ErrNotIPv4
	}
	ip := l.(*layers.IPv4)
	src, ok := netip.AddrFromSlice(ip.SrcIP)
	if !ok {
		return model.FlowRecord{}, fmt.Errorf("invalid source address %v", ip.SrcIP)
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP)
	if !ok {
		return model.FlowRecord{}, fmt.Errorf("invalid destination address %v", ip.DstIP)
	}

	l = packet.Layer(layers.LayerTypeTCP)
	if l == nil {
		return model.FlowRecord{}, ErrNotTCP
	}
	tcp := l.(*layers.TCP)

	var err error
	if rec.FourTuple.SrcIP, err = model.Uint32(src); err != nil {
		return model.FlowRecord{}, err
	}
	if rec.FourTuple.DstIP, err = model.Uint32(dst); err != nil {
		return model.FlowRecord{}, err
	}
	rec.FourTuple.SrcPort = uint16(tcp.SrcPort)
	rec.FourTuple.DstPort = uint16(tcp.DstPort)
	rec.Seq = tcp.Seq
	return rec, nil
}

// ParseData decodes raw bytes starting at the given link layer.
func ParseData(data []byte, link gopacket.Decoder) (model.FlowRecord, error) {
	return ParsePacket(gopacket.NewPacket(data, link, gopacket.Default))
}

// ParseLine parses one text record of the form
//
//	a.b.c.d:port,e.f.g.h:port,seq
//
// Surrounding whitespace is ignored.
func ParseLine(line string) (model.FlowRecord, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return model.FlowRecord{}, fmt.Errorf("expected 3 comma-separated fields, got %d", len(fields))
	}

	var rec model.FlowRecord
	var err error
	if rec.FourTuple.SrcIP, rec.FourTuple.SrcPort, err = parseEndpoint(fields[0]); err != nil {
		return model.FlowRecord{}, fmt.Errorf("invalid source endpoint: %w", err)
	}
	if rec.FourTuple.DstIP, rec.FourTuple.DstPort, err = parseEndpoint(fields[1]); err != nil {
		return model.FlowRecord{}, fmt.Errorf("invalid destination endpoint: %w", err)
	}
	seq, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return model.FlowRecord{}, fmt.Errorf("invalid sequence number: %w", err)
	}
	rec.Seq = uint32(seq)
	rec.Timestamp = time.Now()
	return rec, nil
}

func parseEndpoint(s string) (uint32, uint16, error) {
	host, port, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("missing port in %q", s)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return 0, 0, err
	}
	if !addr.Is4() {
		return 0, 0, fmt.Errorf("not an IPv4 address: %s", host)
	}
	ip, err := model.Uint32(addr)
	if err != nil {
		return 0, 0, err
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port %q: %w", port, err)
	}
	return ip, uint16(p), nil
}
