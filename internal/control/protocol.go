// Package control is the Unix socket a running client listens on, so that
// one-shot CLI commands can query its content book instead of starting a
// second client.
package control

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/msageha/contentbook/internal/activity"
)

const ProtocolVersion = 1

// SocketName is the socket filename inside the data directory.
const SocketName = "client.sock"

// maxFrame bounds a single request or response.
const maxFrame = 4 << 20

const (
	CommandScan   = "scan"
	CommandTrack  = "track"
	CommandStatus = "status"
)

type Request struct {
	ProtocolVersion int             `json:"protocol_version"`
	Command         string          `json:"command"`
	Params          json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a failure reported by the client on the other end.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	CodeProtocolMismatch = "PROTOCOL_MISMATCH"
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeStopped          = "STOPPED"
	CodeInternal         = "INTERNAL_ERROR"
)

type ScanParams struct {
	Type          string `json:"type"`
	FirstPageOnly bool   `json:"first_page_only,omitempty"`
	ShowUpdates   bool   `json:"show_updates,omitempty"`
}

type TrackParams struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Activity is one scanned activity as reported to the CLI.
type Activity struct {
	Name    string          `json:"name" yaml:"name"`
	Status  activity.Status `json:"status" yaml:"status"`
	Level   int             `json:"level,omitempty" yaml:"level,omitempty"`
	Tracked bool            `json:"tracked,omitempty" yaml:"tracked,omitempty"`
}

type ScanResult struct {
	Type          activity.Type `json:"type" yaml:"type"`
	ScannedAt     time.Time     `json:"scanned_at" yaml:"scanned_at"`
	FirstPageOnly bool          `json:"first_page_only,omitempty" yaml:"first_page_only,omitempty"`
	Progress      []string      `json:"progress,omitempty" yaml:"progress,omitempty"`
	Activities    []Activity    `json:"activities" yaml:"activities"`
}

// NewScanResult strips formatting from a scan for display.
func NewScanResult(res activity.Result) ScanResult {
	out := ScanResult{
		Type:          res.Type,
		ScannedAt:     res.ScannedAt,
		FirstPageOnly: res.FirstPageOnly,
		Activities:    make([]Activity, 0, len(res.Activities)),
	}
	for _, line := range res.Progress {
		out.Progress = append(out.Progress, line.Strip())
	}
	for _, a := range res.Activities {
		out.Activities = append(out.Activities, Activity{
			Name:    a.Name,
			Status:  a.Status,
			Level:   a.Level,
			Tracked: a.Tracked,
		})
	}
	return out
}

type StatusResult struct {
	OnServer       bool     `json:"on_server" yaml:"on_server"`
	Screen         string   `json:"screen,omitempty" yaml:"screen,omitempty"`
	Ticks          uint64   `json:"ticks" yaml:"ticks"`
	PendingSamples int      `json:"pending_samples" yaml:"pending_samples"`
	SealedBatches  int      `json:"sealed_batches" yaml:"sealed_batches"`
	Messages       []string `json:"messages,omitempty" yaml:"messages,omitempty"`
}

func NewRequest(command string, params any) (*Request, error) {
	req := &Request{
		ProtocolVersion: ProtocolVersion,
		Command:         command,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}

func SuccessResponse(data any) *Response {
	resp := &Response{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return ErrorResponse(CodeInternal, fmt.Sprintf("marshal response: %v", err))
		}
		resp.Data = raw
	}
	return resp
}

func ErrorResponse(code, message string) *Response {
	return &Response{Error: &Error{Code: code, Message: message}}
}

// WriteFrame writes v as a JSON payload behind a 4-byte big-endian length.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame into v.
func ReadFrame(r io.Reader, v any) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("read frame length: %w", err)
	}
	if length > maxFrame {
		return fmt.Errorf("frame too large: %d bytes", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read frame payload: %w", err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	return nil
}
