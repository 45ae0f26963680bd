package natsclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// Client is a thin wrapper over a NATS connection used for fire-and-forget
// event publishing.
type Client struct {
	conn *nats.Conn
}

// Connect dials the NATS server.
func Connect(url, name string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to connect to NATS")
	}
	return &Client{conn: conn}, nil
}

// Publish sends a message on the given subject.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to publish NATS message")
	}
	return nil
}

// Close drains and closes the connection.
func (c *Client) Close() {
	_ = c.conn.Drain()
}
