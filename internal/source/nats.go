package source

import (
	"context"
	"log"
	"sync"

	"FlowRank/internal/model"
	"FlowRank/internal/probe"
)

// subscription is the part of probe.Subscriber the NATS source depends on.
type subscription interface {
	Start(handler probe.RecordHandler) error
	Close()
}

// NATS receives records published by the publish command. It never ends on
// its own: Run returns when ctx is cancelled.
type NATS struct {
	subject string
	sub     subscription
}

// NewNATS wraps a started or unstarted probe subscriber.
func NewNATS(subject string, sub subscription) *NATS {
	return &NATS{subject: subject, sub: sub}
}

func (n *NATS) Name() string { return "nats:" + n.subject }

func (n *NATS) Run(ctx context.Context, out chan<- model.FlowRecord) error {
	// Closing a subscription does not wait for a callback already running, so
	// the handler checks stopped under mu and Run sets it before returning.
	// No record is sent on out once Run has returned.
	var mu sync.Mutex
	stopped := false
	defer func() {
		n.sub.Close()
		mu.Lock()
		stopped = true
		mu.Unlock()
	}()

	err := n.sub.Start(func(rec model.FlowRecord) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		select {
		case out <- rec:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Printf("Stopping NATS source on '%s'.", n.subject)
	return nil
}
