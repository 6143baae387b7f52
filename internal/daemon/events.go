package daemon

import (
	"github.com/matheus3301/friendzone/internal/bus"
	"github.com/matheus3301/friendzone/internal/status"
	"go.uber.org/zap"
)

// EventLog records bus events in the daemon log.
type EventLog struct {
	bus    *bus.Bus
	logger *zap.Logger
	stop   chan struct{}
	done   chan struct{}
	unsub  func()
}

func NewEventLog(b *bus.Bus, logger *zap.Logger) *EventLog {
	return &EventLog{bus: b, logger: logger.Named("events")}
}

// Start subscribes to every namespace.
func (l *EventLog) Start() {
	var events <-chan bus.Event
	events, l.unsub = l.bus.Subscribe("", 64)
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		for {
			select {
			case evt := <-events:
				l.record(evt)
			case <-l.stop:
				return
			}
		}
	}()
}

func (l *EventLog) record(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		l.logger.Info("status changed",
			zap.String("from", string(p.From)),
			zap.String("to", string(p.To)),
			zap.String("reason", p.Reason))
	case bus.ChatRef:
		fields := []zap.Field{zap.String("kind", evt.Kind), zap.String("chat_id", p.ChatID)}
		if p.Detail != "" {
			fields = append(fields, zap.String("detail", p.Detail))
		}
		if evt.Kind == bus.KindMessageSendFailed {
			l.logger.Warn("event", fields...)
			return
		}
		l.logger.Debug("event", fields...)
	default:
		l.logger.Debug("event", zap.String("kind", evt.Kind))
	}
}

// Stop unsubscribes and waits for the loop to exit.
func (l *EventLog) Stop() {
	if l.stop == nil {
		return
	}
	l.unsub()
	close(l.stop)
	<-l.done
	l.stop = nil
}
