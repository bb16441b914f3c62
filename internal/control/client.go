package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tessro/markov/internal/session"
)

// ErrNoDaemon is returned when nothing listens on the socket.
var ErrNoDaemon = errors.New("daemon not running")

// Client sends commands to a daemon. Each call uses its own connection.
type Client struct {
	socket  string
	timeout time.Duration
}

// NewClient creates a client for socket.
func NewClient(socket string) *Client {
	return &Client{socket: socket, timeout: 10 * time.Second}
}

// Do implements session.Controller.
func (c *Client) Do(ctx context.Context, cmd session.Command) (session.Snapshot, error) {
	return c.roundTrip(ctx, cmd)
}

// Snapshot implements session.Controller.
func (c *Client) Snapshot(ctx context.Context) (session.Snapshot, error) {
	return c.roundTrip(ctx, session.Command{Op: session.OpStatus})
}

// Ping reports whether a daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Snapshot(ctx)
	return err
}

func (c *Client) roundTrip(ctx context.Context, cmd session.Command) (session.Snapshot, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %v", ErrNoDaemon, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	req := Request{ID: uuid.New(), Command: cmd}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return session.Snapshot{}, fmt.Errorf("send: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("receive: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return session.Snapshot{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.ID != req.ID {
		return session.Snapshot{}, fmt.Errorf("response id %s does not match request %s", resp.ID, req.ID)
	}

	var snap session.Snapshot
	if resp.Snapshot != nil {
		snap = *resp.Snapshot
	}
	if resp.Error != "" {
		return snap, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return snap, nil
}

var _ session.Controller = (*Client)(nil)
