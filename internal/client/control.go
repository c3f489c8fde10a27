package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/msageha/contentbook/internal/activity"
	"github.com/msageha/contentbook/internal/control"
	"github.com/msageha/contentbook/internal/hooks"
	"github.com/msageha/contentbook/internal/query"
)

func (c *Client) registerControl(srv *control.Server) {
	srv.Handle(control.CommandScan, c.handleScan)
	srv.Handle(control.CommandTrack, c.handleTrack)
	srv.Handle(control.CommandStatus, c.handleStatus)
}

func (c *Client) handleScan(ctx context.Context, req *control.Request) *control.Response {
	var p control.ScanParams
	if err := decodeParams(req, &p); err != nil {
		return control.ErrorResponse(control.CodeValidation, err.Error())
	}
	t, err := activity.ParseType(p.Type)
	if err != nil {
		return control.ErrorResponse(control.CodeValidation, err.Error())
	}
	res, err := c.service.Scan(ctx, t, activity.ScanOptions{
		ShowUpdates:   p.ShowUpdates,
		FirstPageOnly: p.FirstPageOnly,
	})
	if err != nil {
		return queryErrorResponse(err)
	}
	return control.SuccessResponse(control.NewScanResult(res))
}

func (c *Client) handleTrack(ctx context.Context, req *control.Request) *control.Response {
	var p control.TrackParams
	if err := decodeParams(req, &p); err != nil {
		return control.ErrorResponse(control.CodeValidation, err.Error())
	}
	if p.Name == "" {
		return control.ErrorResponse(control.CodeValidation, "name is required")
	}
	t, err := activity.ParseType(p.Type)
	if err != nil {
		return control.ErrorResponse(control.CodeValidation, err.Error())
	}
	if err := c.service.Track(ctx, p.Name, t); err != nil {
		return queryErrorResponse(err)
	}
	return control.SuccessResponse(nil)
}

func (c *Client) handleStatus(ctx context.Context, _ *control.Request) *control.Response {
	var st control.StatusResult
	err := c.Do(ctx, func(h *hooks.Client) {
		st.OnServer = h.OnServer()
		st.Ticks = h.Ticks()
		if screen, ok := h.Screen(); ok {
			st.Screen = screen.Title.Strip()
		}
	})
	if err != nil {
		return control.ErrorResponse(control.CodeStopped, err.Error())
	}
	st.PendingSamples = c.collector.Pending()
	st.SealedBatches = len(c.collector.Batches())
	for _, m := range c.center.Messages() {
		st.Messages = append(st.Messages, m.Styled().Strip())
	}
	return control.SuccessResponse(st)
}

func decodeParams(req *control.Request, v any) error {
	if len(req.Params) == 0 {
		return errors.New("missing params")
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func queryErrorResponse(err error) *control.Response {
	switch {
	case errors.Is(err, activity.ErrStopped), errors.Is(err, context.Canceled):
		return control.ErrorResponse(control.CodeStopped, err.Error())
	case query.KindOf(err) == query.KindNotFound:
		return control.ErrorResponse(control.CodeNotFound, err.Error())
	default:
		return control.ErrorResponse(control.CodeQueryFailed, err.Error())
	}
}
