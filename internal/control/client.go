package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrNotRunning means no client is listening on the socket.
var ErrNotRunning = errors.New("no running client")

type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 60 * time.Second}
}

func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Send delivers req and waits for the response.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w at %s", ErrNotRunning, c.socketPath)
		}
		return nil, fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := WriteFrame(conn, req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

// Call sends command with params and decodes a successful response into out.
// A failure reported by the other side is returned as *Error.
func (c *Client) Call(ctx context.Context, command string, params, out any) error {
	req, err := NewRequest(command, params)
	if err != nil {
		return err
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error == nil {
			return &Error{Code: CodeInternal, Message: "unsuccessful response without error"}
		}
		return resp.Error
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", command, err)
		}
	}
	return nil
}

func (c *Client) Scan(ctx context.Context, p ScanParams) (ScanResult, error) {
	var res ScanResult
	err := c.Call(ctx, CommandScan, p, &res)
	return res, err
}

func (c *Client) Track(ctx context.Context, p TrackParams) error {
	return c.Call(ctx, CommandTrack, p, nil)
}

func (c *Client) Status(ctx context.Context) (StatusResult, error) {
	var res StatusResult
	err := c.Call(ctx, CommandStatus, nil, &res)
	return res, err
}
