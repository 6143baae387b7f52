package status

import (
	"context"
	"time"

	"github.com/matheus3301/friendzone/internal/logging"
	"go.uber.org/zap"
)

// Pinger is implemented by store backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor pings a backend on a ticker and drives the machine between Ready
// and Degraded.
type Monitor struct {
	machine  *Machine
	pinger   Pinger
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor creates a monitor; interval <= 0 defaults to five seconds.
func NewMonitor(m *Machine, p Pinger, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{machine: m, pinger: p, interval: interval, logger: logging.OrNop(logger)}
}

// Start performs the initial connect check and begins the ticker loop.
func (mon *Monitor) Start(ctx context.Context) {
	ctx, mon.cancel = context.WithCancel(ctx)
	mon.done = make(chan struct{})
	_ = mon.machine.Transition(Connecting, "checking store")
	mon.Check(ctx)

	go func() {
		defer close(mon.done)
		ticker := time.NewTicker(mon.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mon.Check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (mon *Monitor) Stop() {
	if mon.cancel == nil {
		return
	}
	mon.cancel()
	<-mon.done
}

// Check pings once and records the outcome.
func (mon *Monitor) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, mon.interval)
	defer cancel()

	if err := mon.pinger.Ping(pingCtx); err != nil {
		if mon.machine.Current() != Degraded {
			mon.logger.Warn("store unreachable", zap.Error(err))
		}
		_ = mon.machine.Transition(Degraded, err.Error())
		return
	}
	if mon.machine.Current() == Degraded {
		mon.logger.Info("store reachable again")
	}
	_ = mon.machine.Transition(Ready, "")
}
