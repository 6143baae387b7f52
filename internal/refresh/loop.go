// Package refresh runs refetches on demand, folding bursts of triggers into
// as few runs as possible.
package refresh

import (
	"context"
	"sync"
)

// Loop calls run once per batch of triggers. A trigger that arrives while
// run is executing schedules exactly one more run, so the last trigger is
// always followed by a complete run.
type Loop struct {
	run     func(context.Context)
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Start launches the loop. It stops when ctx is done or Stop is called.
func Start(ctx context.Context, run func(context.Context)) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		run:     run,
		trigger: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go l.loop(ctx)
	return l
}

func (l *Loop) loop(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.trigger:
		}
		if ctx.Err() != nil {
			return
		}
		l.run(ctx)
	}
}

// Trigger requests a run without blocking.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for an in-flight run to return.
func (l *Loop) Stop() {
	l.once.Do(l.cancel)
	<-l.done
}
