package pcap

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"FlowRank/internal/engine/protocol"
	"FlowRank/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ErrUnknownFormat is returned for files that are neither pcap nor pcapng.
var ErrUnknownFormat = errors.New("unknown capture file format")

const (
	magicMicros        = 0xa1b2c3d4
	magicNanos         = 0xa1b23c4d
	magicSectionHeader = 0x0a0d0d0a
)

// Reader reads TCP flow records from an offline pcap or pcapng file.
type Reader struct {
	file     *os.File
	source   *gopacket.PacketSource
	linkType layers.LinkType
	skipped  uint64
}

// NewReader opens the capture at filePath, detecting its format from the magic number.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := newReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open capture '%s': %w", filePath, err)
	}
	r.file = file
	return r, nil
}

func newReader(in io.Reader) (*Reader, error) {
	br := bufio.NewReader(in)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	var src gopacket.PacketDataSource
	var linkType layers.LinkType
	switch magic(head) {
	case magicMicros, magicNanos:
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, err
		}
		src, linkType = pr, pr.LinkType()
	case magicSectionHeader:
		nr, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		src, linkType = nr, nr.LinkType()
	default:
		return nil, ErrUnknownFormat
	}

	source := gopacket.NewPacketSource(src, linkType)
	source.DecodeOptions = gopacket.Lazy
	source.DecodeOptions.NoCopy = true
	return &Reader{source: source, linkType: linkType}, nil
}

// magic reads a 4-byte magic number in either byte order.
func magic(b []byte) uint32 {
	if v := binary.LittleEndian.Uint32(b); v == magicMicros || v == magicNanos || v == magicSectionHeader {
		return v
	}
	return binary.BigEndian.Uint32(b)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// LinkType returns the link layer of the capture.
func (r *Reader) LinkType() layers.LinkType { return r.linkType }

// Skipped returns how many packets were ignored because they were not IPv4/TCP.
func (r *Reader) Skipped() uint64 { return r.skipped }

// ReadPackets sends a record for every IPv4/TCP packet to out, in capture
// order, until the file ends or ctx is cancelled. It does not close out.
func (r *Reader) ReadPackets(ctx context.Context, out chan<- model.FlowRecord) error {
	for {
		packet, err := r.source.NextPacket()
		if err == io.EOF {
			if r.skipped > 0 {
				log.Printf("Skipped %d non-TCP packets.", r.skipped)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}

		rec, err := protocol.ParsePacket(packet)
		if err != nil {
			if !errors.Is(err, protocol.ErrNotIPv4) && !errors.Is(err, protocol.ErrNotTCP) {
				log.Printf("Error parsing packet: %v", err)
			}
			r.skipped++
			continue
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
