package probe

import (
	"fmt"
	"math"
	"net/netip"

	"FlowRank/internal/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Field names of the protobuf Struct carrying one record on the wire.
const (
	fieldSrc     = "src"
	fieldDst     = "dst"
	fieldSrcPort = "src_port"
	fieldDstPort = "dst_port"
	fieldSeq     = "seq"
	fieldSeconds = "ts_seconds"
	fieldNanos   = "ts_nanos"
)

// Range accepted by timestamppb: 0001-01-01 to 9999-12-31.
const (
	minSeconds = -62135596800
	maxSeconds = 253402300799
)

// Marshal serializes a record to protobuf binary format.
func Marshal(rec model.FlowRecord) ([]byte, error) {
	ts := timestamppb.New(rec.Timestamp)
	msg, err := structpb.NewStruct(map[string]any{
		fieldSrc:     model.IPv4(rec.FourTuple.SrcIP).String(),
		fieldDst:     model.IPv4(rec.FourTuple.DstIP).String(),
		fieldSrcPort: float64(rec.FourTuple.SrcPort),
		fieldDstPort: float64(rec.FourTuple.DstPort),
		fieldSeq:     float64(rec.Seq),
		fieldSeconds: float64(ts.GetSeconds()),
		fieldNanos:   float64(ts.GetNanos()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build record message: %w", err)
	}
	return proto.Marshal(msg)
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (model.FlowRecord, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return model.FlowRecord{}, fmt.Errorf("failed to unmarshal protobuf: %w", err)
	}
	fields := msg.GetFields()

	var rec model.FlowRecord
	var err error
	if rec.FourTuple.SrcIP, err = address(fields, fieldSrc); err != nil {
		return model.FlowRecord{}, err
	}
	if rec.FourTuple.DstIP, err = address(fields, fieldDst); err != nil {
		return model.FlowRecord{}, err
	}
	srcPort, err := integer(fields, fieldSrcPort, 0, math.MaxUint16)
	if err != nil {
		return model.FlowRecord{}, err
	}
	dstPort, err := integer(fields, fieldDstPort, 0, math.MaxUint16)
	if err != nil {
		return model.FlowRecord{}, err
	}
	seq, err := integer(fields, fieldSeq, 0, math.MaxUint32)
	if err != nil {
		return model.FlowRecord{}, err
	}
	seconds, err := integer(fields, fieldSeconds, minSeconds, maxSeconds)
	if err != nil {
		return model.FlowRecord{}, err
	}
	nanos, err := integer(fields, fieldNanos, 0, 999_999_999)
	if err != nil {
		return model.FlowRecord{}, err
	}

	ts := &timestamppb.Timestamp{Seconds: int64(seconds), Nanos: int32(nanos)}
	if err := ts.CheckValid(); err != nil {
		return model.FlowRecord{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	rec.FourTuple.SrcPort = uint16(srcPort)
	rec.FourTuple.DstPort = uint16(dstPort)
	rec.Seq = uint32(seq)
	rec.Timestamp = ts.AsTime()
	return rec, nil
}

func address(fields map[string]*structpb.Value, name string) (uint32, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("missing field '%s'", name)
	}
	addr, err := netip.ParseAddr(v.GetStringValue())
	if err != nil {
		return 0, fmt.Errorf("invalid field '%s': %w", name, err)
	}
	return model.Uint32(addr)
}

func integer(fields map[string]*structpb.Value, name string, lo, hi float64) (float64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("missing field '%s'", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field '%s' is not a number", name)
	}
	if n.NumberValue < lo || n.NumberValue > hi || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("field '%s' out of range: %v", name, n.NumberValue)
	}
	return n.NumberValue, nil
}
