package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventsSubject is the JetStream subject daemon lifecycle events publish to.
const EventsSubject = "sentineld.daemon.events"

// eventsStreamName is the JetStream stream backing EventsSubject.
const eventsStreamName = "SENTINELD_EVENTS"

// NATSBridge forwards Bus events to a JetStream stream. It tolerates the
// broker being briefly unreachable: the underlying connection reconnects
// indefinitely, and Publish surfaces a transient error rather than panicking
// or blocking forever.
type NATSBridge struct {
	conn *nats.Conn
	js   jetstream.JetStream

	reconnecting atomic.Bool
}

// NewNATSBridge dials url and ensures eventsStreamName exists, creating it
// with a bounded, age-limited retention policy if absent.
func NewNATSBridge(ctx context.Context, url string) (*NATSBridge, error) {
	b := &NATSBridge{}

	conn, err := nats.Connect(url,
		nats.Name("sentineld-eventbus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectJitter(100*time.Millisecond, time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.reconnecting.Store(true)
				slog.Warn("eventbus nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			b.reconnecting.Store(false)
			slog.Info("eventbus nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info("eventbus nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	if _, err := js.Stream(ctx, eventsStreamName); err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      eventsStreamName,
			Subjects:  []string{EventsSubject},
			Retention: jetstream.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			MaxBytes:  64 * 1024 * 1024,
			Storage:   jetstream.FileStorage,
			Discard:   jetstream.DiscardOld,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create events stream: %w", err)
		}
	}

	b.conn = conn
	b.js = js
	return b, nil
}

// Publish marshals ev and publishes it to EventsSubject. It fails fast
// rather than blocking indefinitely while the connection is reconnecting.
func (b *NATSBridge) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if b.reconnecting.Load() {
		return fmt.Errorf("eventbus nats connection unavailable")
	}
	if _, err := b.js.Publish(ctx, EventsSubject, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (b *NATSBridge) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}
