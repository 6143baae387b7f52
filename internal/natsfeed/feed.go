// Package natsfeed carries real-time store change events over NATS so
// daemons sharing a Redis store see each other's writes.
package natsfeed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix is followed by the base64url-encoded collection path, since
// paths may contain characters NATS treats as tokens.
const SubjectPrefix = "fz.rt."

// Feed is an rtstore.Notifier backed by a NATS connection.
type Feed struct {
	conn   *nats.Conn
	logger *zap.Logger
}

var _ rtstore.Notifier = (*Feed)(nil)

// Connect dials NATS with reconnects enabled.
func Connect(url, name string, logger *zap.Logger) (*Feed, error) {
	logger = logging.OrNop(logger)
	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()))
	return &Feed{conn: nc, logger: logger}, nil
}

// Subject returns the NATS subject that carries events for parent.
func Subject(parent string) string {
	return SubjectPrefix + base64.RawURLEncoding.EncodeToString([]byte(parent))
}

func (f *Feed) Notify(_ context.Context, evt rtstore.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return f.conn.Publish(Subject(evt.Parent), data)
}

func (f *Feed) Listen(parent string, h rtstore.Handler) (func(), error) {
	p, err := rtstore.Clean(parent)
	if err != nil {
		return nil, err
	}
	sub, err := f.conn.Subscribe(Subject(p), func(msg *nats.Msg) {
		var evt rtstore.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			f.logger.Warn("dropping malformed change event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		h(evt)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", p, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Ping flushes the connection, failing when the server is unreachable.
func (f *Feed) Ping(ctx context.Context) error {
	return f.conn.FlushWithContext(ctx)
}

// Close drains subscriptions and closes the connection.
func (f *Feed) Close() {
	if err := f.conn.Drain(); err != nil {
		f.conn.Close()
	}
}
