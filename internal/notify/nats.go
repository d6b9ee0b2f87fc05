package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// NATS subjects for chat lifecycle events on the CRM bus.
const (
	SubjectChatCreated = "crm.chat.created"
	SubjectChatClosed  = "crm.chat.closed"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "operator-console",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NATSNotifier republishes chat lifecycle events on the CRM's NATS bus so
// other services (student CRM, follow-up scheduling) react without holding
// their own operator socket. Publish failures are logged, never propagated:
// the bus is a side channel off the realtime path.
type NATSNotifier struct {
	conn *nats.Conn
}

// NewNATSNotifier connects to NATS with the given config and returns a ready
// notifier. It returns an error if the initial connection fails.
func NewNATSNotifier(config NATSConfig) (*NATSNotifier, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())
	return &NATSNotifier{conn: nc}, nil
}

// ChatCreated implements Notifier.
func (n *NATSNotifier) ChatCreated(chat protocol.Chat) {
	n.publish(SubjectChatCreated, CreatedNotice{Chat: chat, At: time.Now().UTC()})
}

// ChatClosedByStudent implements Notifier.
func (n *NATSNotifier) ChatClosedByStudent(chatID string) {
	n.publish(SubjectChatClosed, ClosedNotice{
		ChatID:   chatID,
		ClosedBy: protocol.ClosedByStudent,
		At:       time.Now().UTC(),
	})
}

func (n *NATSNotifier) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[nats] marshal %s payload: %v", subject, err)
		return
	}
	if err := n.conn.Publish(subject, data); err != nil {
		log.Printf("[nats] publish %s: %v", subject, err)
	}
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	n.conn.Close()
}
