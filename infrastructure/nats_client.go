package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSClient wraps the node's connection to the message bus. Peer calls are
// core NATS request/reply; earnings notifications are plain publishes.
type NATSClient struct {
	servers              string
	name                 string
	nc                   *nats.Conn
	subscriptions        map[string]*nats.Subscription
	mu                   sync.RWMutex
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

// NewNATSClient creates a new NATS client
func NewNATSClient(servers, name string) *NATSClient {
	return &NATSClient{
		servers:              servers,
		name:                 name,
		subscriptions:        make(map[string]*nats.Subscription),
		reconnectDelay:       2 * time.Second,
		maxReconnectAttempts: 10,
	}
}

// Connect establishes a connection to the NATS server
func (c *NATSClient) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnectAttempts),
		nats.ReconnectWait(c.reconnectDelay),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.WithFields(log.Fields{
				"subject": sub.Subject,
				"error":   err,
			}).Error("NATS async error")
		}),
	}

	nc, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.nc = nc

	log.WithField("servers", c.servers).Info("Connected to NATS")
	return nil
}

// Request sends a request to the subject and waits for a single reply.
func (c *NATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if c.nc == nil {
		return nil, fmt.Errorf("not connected to NATS")
	}

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", subject, err)
	}
	return msg.Data, nil
}

// Publish publishes a message to the subject without waiting for a reply
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	if c.nc == nil {
		return fmt.Errorf("not connected to NATS")
	}

	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject": subject,
		"size":    len(data),
	}).Debug("Published message to NATS")
	return nil
}

// Subscribe registers a handler for messages on the specified subject. The
// handler receives the raw message so it can reply when one is expected.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil {
		return fmt.Errorf("not connected to NATS")
	}

	sub, err := c.nc.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.subscriptions[subject] = sub
	log.WithField("subject", subject).Info("Subscribed to NATS subject")
	return nil
}

// Close gracefully shuts down the NATS connection
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			log.WithFields(log.Fields{
				"subject": subject,
				"error":   err,
			}).Error("Failed to unsubscribe")
		}
	}
	c.subscriptions = make(map[string]*nats.Subscription)

	if c.nc != nil {
		// Let in-flight replies drain before closing
		if err := c.nc.Drain(); err != nil {
			c.nc.Close()
		}
		log.Info("NATS connection closed")
	}

	return nil
}

// IsConnected returns true if the client is connected to NATS
func (c *NATSClient) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}
