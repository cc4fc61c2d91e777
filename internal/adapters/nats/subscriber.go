package natsadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/casaview/internal/core/ports"
)

// Subscriber implements ports.EventSubscriber using NATS.
//
// Sync events are cache invalidations that every API instance must see, so
// they are consumed with a plain subscription rather than a shared durable
// consumer.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber opens its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn}, nil
}

// Conn exposes the underlying connection for health checks.
func (s *Subscriber) Conn() *nats.Conn {
	return s.conn
}

func (s *Subscriber) SubscribeListingsSynced(ctx context.Context, handler func(ctx context.Context, event *ports.SyncEvent) error) error {
	sub, err := s.conn.Subscribe(subjectListingsSync, func(msg *nats.Msg) {
		var event ports.SyncEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("dropping malformed sync event", "error", err)
			return
		}
		if err := handler(ctx, &event); err != nil {
			slog.Warn("sync event handler failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
