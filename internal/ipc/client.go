package ipc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a connection to a running bridge.
type Client struct {
	conn    *Conn
	timeout time.Duration
	seq     int64
	// events holds events that arrived while waiting for a reply.
	events []*structpb.Struct
}

// Dial connects to the bridge socket. An empty path uses
// DefaultSocketPath.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	if socketPath == "" {
		var err error
		if socketPath, err = DefaultSocketPath(); err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	return &Client{conn: newConn(nc, DefaultLimits), timeout: 5 * time.Second}, nil
}

// SetTimeout bounds how long Call waits for a reply.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes a request without waiting for a reply and returns the
// sequence number assigned to it.
func (c *Client) Send(msg *structpb.Struct) (int64, error) {
	c.seq++
	if msg.Fields == nil {
		msg.Fields = map[string]*structpb.Value{}
	}
	msg.Fields[FieldSeq] = structpb.NewNumberValue(float64(c.seq))
	if err := c.conn.WriteMessage(msg); err != nil {
		return 0, err
	}
	return c.seq, c.conn.Flush()
}

// Call sends a request and waits for the reply carrying its sequence
// number. Events received meanwhile are kept for Next. An error reply is
// returned as an error.
func (c *Client) Call(msg *structpb.Struct) (*structpb.Struct, error) {
	seq, err := c.Send(msg)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		_ = c.conn.conn.SetReadDeadline(time.Now().Add(c.timeout))
		defer c.conn.conn.SetReadDeadline(time.Time{})
	}

	for {
		reply, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if Op(reply) == OpEvent {
			c.events = append(c.events, reply)
			continue
		}
		if n, _ := Int(reply, FieldSeq); n != seq {
			continue
		}
		if err := ErrorOf(reply); err != nil {
			return reply, fmt.Errorf("server error: %w", err)
		}
		return reply, nil
	}
}

// Next returns the next event, waiting up to timeout for one to arrive.
func (c *Client) Next(timeout time.Duration) (*structpb.Struct, error) {
	if len(c.events) > 0 {
		e := c.events[0]
		c.events = c.events[1:]
		return e, nil
	}

	if timeout > 0 {
		_ = c.conn.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.conn.SetReadDeadline(time.Time{})
	}
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if Op(msg) == OpEvent {
			return msg, nil
		}
	}
}

// Status asks the bridge for its status report.
func (c *Client) Status() (*structpb.Struct, error) {
	req, err := NewMessage(OpStatus, nil)
	if err != nil {
		return nil, err
	}
	return c.Call(req)
}
