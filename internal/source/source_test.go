package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"FlowRank/internal/config"
	"FlowRank/internal/factory"
	"FlowRank/internal/model"
	"FlowRank/internal/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const input = `192.168.0.1:40000,8.8.8.8:443,100

not a record
192.168.0.1:40000,8.8.8.8:443,160
10.0.0.1:22,10.0.0.2:50000,7,extra
10.0.0.1:22,10.0.0.2:50000,7
`

func collect(t *testing.T, src model.Source) []model.FlowRecord {
	t.Helper()
	var recs []model.FlowRecord
	require.NoError(t, Each(context.Background(), src, func(rec model.FlowRecord) error {
		recs = append(recs, rec)
		return nil
	}))
	return recs
}

func TestText_SkipsBlankAndMalformedLines(t *testing.T) {
	src := NewText("test", strings.NewReader(input))
	recs := collect(t, src)

	require.Len(t, recs, 3)
	assert.Equal(t, uint32(100), recs[0].Seq)
	assert.Equal(t, uint32(160), recs[1].Seq)
	assert.Equal(t, model.FourTuple{SrcIP: 0x0A000001, DstIP: 0x0A000002, SrcPort: 22, DstPort: 50000}, recs[2].FourTuple)
	assert.Equal(t, uint64(2), src.Skipped())
	assert.Equal(t, "text:test", src.Name())
}

func TestText_StopsOnCancel(t *testing.T) {
	src := NewText("test", strings.NewReader(input))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := src.Run(ctx, make(chan model.FlowRecord))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.txt")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o644))

	src, err := OpenText(path)
	require.NoError(t, err)
	assert.Len(t, collect(t, src), 3)

	stdin, err := OpenText("-")
	require.NoError(t, err)
	assert.Equal(t, "text:stdin", stdin.Name())

	_, err = OpenText(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFactory_CreatesRegisteredSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.txt")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o644))

	src, err := factory.NewSource(&config.Config{Source: config.SourceConfig{Type: "text", Path: path}})
	require.NoError(t, err)
	assert.Equal(t, "text:"+path, src.Name())

	_, err = factory.NewSource(&config.Config{Source: config.SourceConfig{Type: "pcap", Path: path}})
	assert.Error(t, err, "a text file is not a capture")
}

func TestEach_StopsAtFirstError(t *testing.T) {
	src := NewText("test", strings.NewReader(input))
	stop := errors.New("stop")
	n := 0
	err := Each(context.Background(), src, func(model.FlowRecord) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, n)
}

type fakeSubscription struct {
	mu      sync.Mutex
	handler probe.RecordHandler
	started chan struct{}
	closed  bool
}

func (f *fakeSubscription) Start(h probe.RecordHandler) error {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	close(f.started)
	return nil
}

func (f *fakeSubscription) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestNATS_ForwardsUntilCancelled(t *testing.T) {
	sub := &fakeSubscription{started: make(chan struct{})}
	src := NewNATS("flows", sub)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.FlowRecord, 4)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, out) }()

	select {
	case <-sub.started:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription never started")
	}
	sub.handler(model.FlowRecord{Seq: 1})
	sub.handler(model.FlowRecord{Seq: 2})
	assert.Equal(t, uint32(1), (<-out).Seq)
	assert.Equal(t, uint32(2), (<-out).Seq)

	cancel()
	require.NoError(t, <-errc)
	sub.mu.Lock()
	assert.True(t, sub.closed)
	sub.mu.Unlock()
	assert.Equal(t, "nats:flows", src.Name())
}

type failingSubscription struct{ closed bool }

func (f *failingSubscription) Start(probe.RecordHandler) error { return errors.New("no responders") }
func (f *failingSubscription) Close()                          { f.closed = true }

func TestNATS_StartFailure(t *testing.T) {
	sub := &failingSubscription{}
	err := NewNATS("flows", sub).Run(context.Background(), make(chan model.FlowRecord))
	assert.Error(t, err)
	assert.True(t, sub.closed)
}

// lateSubscription behaves like a NATS connection whose Close returns while
// a message callback may still be running or about to run.
type lateSubscription struct {
	handler probe.RecordHandler
	started chan struct{}
	late    sync.WaitGroup
}

func (l *lateSubscription) Start(h probe.RecordHandler) error {
	l.handler = h
	close(l.started)
	return nil
}

func (l *lateSubscription) Close() {
	l.late.Add(2)
	go func() {
		defer l.late.Done()
		l.handler(model.FlowRecord{Seq: 98})
	}()
	go func() {
		defer l.late.Done()
		time.Sleep(time.Millisecond)
		l.handler(model.FlowRecord{Seq: 99})
	}()
}

func TestNATS_NoSendAfterRunReturns(t *testing.T) {
	for i := 0; i < 50; i++ {
		sub := &lateSubscription{started: make(chan struct{})}
		src := NewNATS("flows", sub)

		// Drive the source the way the manager does: close out once Run returns.
		ctx, cancel := context.WithCancel(context.Background())
		out := make(chan model.FlowRecord, 8)
		errc := make(chan error, 1)
		go func() {
			errc <- src.Run(ctx, out)
			close(out)
		}()

		<-sub.started
		sub.handler(model.FlowRecord{Seq: 1})
		cancel()
		require.NoError(t, <-errc)

		// A send on the closed channel would panic inside these callbacks.
		sub.late.Wait()

		var seqs []uint32
		for rec := range out {
			seqs = append(seqs, rec.Seq)
		}
		require.NotEmpty(t, seqs)
		assert.Equal(t, uint32(1), seqs[0])
	}
}
