package protocol

import (
	"errors"
	"net"
	"testing"
	"time"

	"FlowRank/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func TestParseData_TCP(t *testing.T) {
	ip := &layers.IPv4{
		SrcIP:    net.IP{192, 168, 0, 1},
		DstIP:    net.IP{8, 8, 8, 8},
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, Seq: 123456789, ACK: true, Window: 14600}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	rec, err := ParseData(serialize(t, ethernet(), ip, tcp, gopacket.Payload("hello")), layers.LayerTypeEthernet)
	require.NoError(t, err)
	assert.Equal(t, model.FourTuple{SrcIP: 0xC0A80001, DstIP: 0x08080808, SrcPort: 40000, DstPort: 443}, rec.FourTuple)
	assert.Equal(t, uint32(123456789), rec.Seq)
}

func TestParseData_Rejects(t *testing.T) {
	ip := &layers.IPv4{
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	_, err := ParseData(serialize(t, ethernet(), ip, udp), layers.LayerTypeEthernet)
	assert.True(t, errors.Is(err, ErrNotTCP))

	arp := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	_, err = ParseData(serialize(t, arp, gopacket.Payload(make([]byte, 28))), layers.LayerTypeEthernet)
	assert.True(t, errors.Is(err, ErrNotIPv4))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    model.FlowRecord
		wantErr bool
	}{
		{
			name: "valid",
			line: "192.168.0.1:40000,8.8.8.8:443,1234\n",
			want: model.FlowRecord{
				FourTuple: model.FourTuple{SrcIP: 0xC0A80001, DstIP: 0x08080808, SrcPort: 40000, DstPort: 443},
				Seq:       1234,
			},
		},
		{
			name: "spaces and max values",
			line: "  255.255.255.255:65535 , 0.0.0.0:0 , 4294967295 ",
			want: model.FlowRecord{
				FourTuple: model.FourTuple{SrcIP: 0xFFFFFFFF, DstIP: 0, SrcPort: 65535, DstPort: 0},
				Seq:       4294967295,
			},
		},
		{name: "missing field", line: "1.2.3.4:1,5.6.7.8:2", wantErr: true},
		{name: "extra field", line: "1.2.3.4:1,5.6.7.8:2,3,4", wantErr: true},
		{name: "missing port", line: "1.2.3.4,5.6.7.8:2,3", wantErr: true},
		{name: "bad address", line: "1.2.3:1,5.6.7.8:2,3", wantErr: true},
		{name: "ipv6", line: "::1:1,5.6.7.8:2,3", wantErr: true},
		{name: "port overflow", line: "1.2.3.4:65536,5.6.7.8:2,3", wantErr: true},
		{name: "seq overflow", line: "1.2.3.4:1,5.6.7.8:2,4294967296", wantErr: true},
		{name: "negative seq", line: "1.2.3.4:1,5.6.7.8:2,-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.FourTuple, got.FourTuple)
			assert.Equal(t, tt.want.Seq, got.Seq)
			assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)
		})
	}
}
