package probe

import (
	"testing"
	"time"

	"FlowRank/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestCodec_PreservesRecord(t *testing.T) {
	rec := model.FlowRecord{
		Timestamp: time.Date(2024, 5, 1, 12, 30, 15, 123456789, time.UTC),
		FourTuple: model.FourTuple{SrcIP: 0xFFFFFFFF, DstIP: 0x0A000001, SrcPort: 65535, DstPort: 0},
		Seq:       4294967295,
	}
	data, err := Marshal(rec)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, rec.FourTuple, got.FourTuple)
	assert.Equal(t, rec.Seq, got.Seq)
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))
}

func TestUnmarshal_RejectsBadMessages(t *testing.T) {
	valid := map[string]any{
		fieldSrc: "10.0.0.1", fieldDst: "10.0.0.2",
		fieldSrcPort: 1.0, fieldDstPort: 2.0, fieldSeq: 3.0,
		fieldSeconds: 0.0, fieldNanos: 0.0,
	}
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"missing src", fieldSrc, nil},
		{"ipv6 src", fieldSrc, "::1"},
		{"port overflow", fieldSrcPort, 70000.0},
		{"negative seq", fieldSeq, -1.0},
		{"fractional seq", fieldSeq, 1.5},
		{"seq as string", fieldSeq, "12"},
		{"nanos overflow", fieldNanos, 2e9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := make(map[string]any, len(valid))
			for k, v := range valid {
				m[k] = v
			}
			if tt.value == nil {
				delete(m, tt.field)
			} else {
				m[tt.field] = tt.value
			}
			msg, err := structpb.NewStruct(m)
			require.NoError(t, err)
			data, err := proto.Marshal(msg)
			require.NoError(t, err)

			_, err = Unmarshal(data)
			assert.Error(t, err)
		})
	}

	_, err := Unmarshal([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestHandleMessage_SkipsUndecodable(t *testing.T) {
	var got []model.FlowRecord
	handler := func(rec model.FlowRecord) { got = append(got, rec) }

	handleMessage([]byte("garbage"), handler)
	assert.Empty(t, got)

	data, err := Marshal(model.FlowRecord{FourTuple: model.FourTuple{SrcIP: 1, DstIP: 2}, Seq: 7, Timestamp: time.Unix(1, 0)})
	require.NoError(t, err)
	handleMessage(data, handler)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(7), got[0].Seq)
}
