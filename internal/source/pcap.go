package source

import (
	"context"

	"FlowRank/internal/model"
	"FlowRank/pkg/pcap"
)

// Pcap reads TCP records from an offline capture file. The file is opened
// eagerly so a bad path is reported before ingestion starts.
type Pcap struct {
	path   string
	reader *pcap.Reader
}

// OpenPcap opens the pcap or pcapng file at path.
func OpenPcap(path string) (*Pcap, error) {
	reader, err := pcap.NewReader(path)
	if err != nil {
		return nil, err
	}
	return &Pcap{path: path, reader: reader}, nil
}

func (p *Pcap) Name() string { return "pcap:" + p.path }

func (p *Pcap) Run(ctx context.Context, out chan<- model.FlowRecord) error {
	defer p.reader.Close()
	return p.reader.ReadPackets(ctx, out)
}
