package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Publisher is the part of *nats.Conn the bridge uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge forwards dispatcher events to NATS subjects named
// "<prefix>.<event type>".
type NATSBridge struct {
	pub    Publisher
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials the broker with the service name attached.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, oops.Code("NATS_CONNECT_FAILED").With("url", url).Wrap(err)
	}
	return nc, nil
}

// NewNATSBridge builds a bridge over an established publisher.
func NewNATSBridge(pub Publisher, prefix string, logger *zap.Logger) *NATSBridge {
	return &NATSBridge{pub: pub, prefix: strings.Trim(prefix, "."), logger: logger}
}

// Attach subscribes the bridge to every auth event.
func (b *NATSBridge) Attach(d Dispatcher) {
	for _, t := range AllEventTypes {
		d.Subscribe(t, b.forward)
	}
}

// Subject returns the NATS subject for an event type.
func (b *NATSBridge) Subject(t EventType) string {
	if b.prefix == "" {
		return string(t)
	}
	return b.prefix + "." + string(t)
}

func (b *NATSBridge) forward(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return oops.Code("EVENT_ENCODE_FAILED").With("event_type", event.Type).Wrap(err)
	}

	subject := b.Subject(event.Type)
	if err := b.pub.Publish(subject, data); err != nil {
		b.logger.Warn("nats publish failed", zap.String("subject", subject), zap.Error(err))
		return oops.Code("EVENT_PUBLISH_FAILED").With("subject", subject).Wrap(err)
	}
	b.logger.Debug("event published", zap.String("subject", subject), zap.String("event_id", event.ID))
	return nil
}
