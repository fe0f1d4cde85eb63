package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/authcore/runtime/internal/logger"
	"github.com/nats-io/nats.go"
)

// NATSConfig configures an optional cross-process bridge for a Bus. When
// URL is empty the bridge is disabled and NewNATSBridge returns a no-op.
type NATSConfig struct {
	URL      string
	User     string
	Password string
	Subject  string // subject prefix events are published/subscribed under
}

// NATSBridge mirrors local Bus emissions onto a NATS subject and
// re-publishes messages received from NATS back onto the local Bus,
// letting multiple runtime instances share one logical event stream.
type NATSBridge struct {
	conn    *nats.Conn
	bus     *Bus
	subject string
	enabled bool
}

// NewNATSBridge connects to NATS per cfg and wires it to bus. If cfg.URL
// is empty, a disabled bridge is returned (Publish becomes a no-op) rather
// than an error, so callers can treat NATS as optional infrastructure.
func NewNATSBridge(cfg NATSConfig, bus *Bus) (*NATSBridge, error) {
	if cfg.URL == "" {
		return &NATSBridge{bus: bus, enabled: false}, nil
	}

	opts := []nats.Option{
		nats.Name("authcore-runtime-events"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Events().Warn().Err(err).Msg("nats bridge disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Events().Info().Str("url", nc.ConnectedUrl()).Msg("nats bridge reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Events().Error().Err(err).Msg("nats bridge error")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: connect nats bridge: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "authcore.events"
	}
	return &NATSBridge{conn: conn, bus: bus, subject: subject, enabled: true}, nil
}

// Publish mirrors e onto the bridge's NATS subject. A no-op on a disabled
// bridge.
func (b *NATSBridge) Publish(e Event) error {
	if !b.enabled {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal event for nats: %w", err)
	}
	return b.conn.Publish(b.subject+"."+e.Type.String(), data)
}

// Listen subscribes to the bridge's subject wildcard and re-emits received
// events onto the local bus. Returns a no-op unsubscribe on a disabled
// bridge.
func (b *NATSBridge) Listen() (func(), error) {
	if !b.enabled {
		return func() {}, nil
	}
	sub, err := b.conn.Subscribe(b.subject+".>", func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			logger.Events().Error().Err(err).Msg("nats bridge: malformed event payload")
			return
		}
		if err := b.bus.Emit(e); err != nil {
			logger.Events().Error().Err(err).Str("event_id", e.ID).Msg("nats bridge: local emit failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("events: subscribe nats bridge: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains and closes the underlying NATS connection.
func (b *NATSBridge) Close() {
	if b.enabled && b.conn != nil {
		b.conn.Close()
	}
}
