package model

import (
	"fmt"
	"net/netip"
	"time"
)

// FourTuple identifies a flow: an IPv4 endpoint pair with ports.
// Addresses are held as 32-bit values in network order (a.b.c.d is a<<24|b<<16|c<<8|d).
type FourTuple struct {
	SrcIP   uint32
	DstIP   uint32
	SrcPort uint16
	DstPort uint16
}

// FlowRecord is a single observation of a flow carrying one sequence marker.
type FlowRecord struct {
	Timestamp time.Time
	FourTuple FourTuple
	Seq       uint32
}

// Flow is the aggregated state of one distinct FourTuple.
type Flow struct {
	FourTuple FourTuple
	Key       string
	First     uint32 // sequence marker of the first record
	Last      uint32 // highest marker seen after the first, valid when HasLast
	HasLast   bool
	Records   uint64
	StartTime time.Time
	EndTime   time.Time
}

// Report is the ranked state of a run, flows ordered from smallest to largest.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Records     uint64
	Collisions  uint64
	Flows       []Flow
}

// IPv4 converts a 32-bit address to a netip.Addr.
func IPv4(a uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)})
}

// Uint32 converts an IPv4 (or IPv4-mapped) address to its 32-bit value.
func Uint32(addr netip.Addr) (uint32, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, fmt.Errorf("not an IPv4 address: %s", addr)
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// String formats the tuple as "a.b.c.d:p,e.f.g.h:q", the input line format.
func (ft FourTuple) String() string {
	return fmt.Sprintf("%s:%d,%s:%d", IPv4(ft.SrcIP), ft.SrcPort, IPv4(ft.DstIP), ft.DstPort)
}

// Extent is the highest sequence marker recorded for the flow.
func (f *Flow) Extent() uint32 {
	if f.HasLast {
		return f.Last
	}
	return f.First
}

// Size is the span between the first and the highest marker, 0 for a flow
// seen only once.
func (f *Flow) Size() uint64 {
	if !f.HasLast {
		return 0
	}
	return uint64(f.Last - f.First)
}

// Summary is the one-line report form of the flow.
func (f *Flow) Summary() string {
	return fmt.Sprintf("Flux %s / Taille : %d", f.FourTuple, f.Size())
}

// String is the detailed form used when reporting a sequence violation:
// "a.b.c.d:p e.f.g.h:q - first - last".
func (f *Flow) String() string {
	ft := f.FourTuple
	return fmt.Sprintf("%s:%d %s:%d - %d - %d",
		IPv4(ft.SrcIP), ft.SrcPort, IPv4(ft.DstIP), ft.DstPort, f.First, f.Last)
}
