package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/msageha/contentbook/internal/styled"
)

// ErrStopped is returned when the main loop went away before a query ended.
var ErrStopped = errors.New("content book service stopped")

// Result is the outcome of one successful scan.
type Result struct {
	Type          Type
	Activities    []Info
	Progress      []styled.Text
	ScannedAt     time.Time
	FirstPageOnly bool
}

// ScanOptions tunes a blocking scan.
type ScanOptions struct {
	ShowUpdates   bool
	FirstPageOnly bool
}

// Service is a blocking facade over Queries for callers that live off the
// main loop. Concurrent scans of the same view share one script.
type Service struct {
	queries *Queries
	quit    <-chan struct{}
	logger  *zap.Logger
	now     func() time.Time

	flight singleflight.Group

	mu   sync.RWMutex
	last map[Type]Result
}

// NewService wraps q. quit is closed when the main loop stops; pending calls
// then return ErrStopped.
func NewService(q *Queries, quit <-chan struct{}, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		queries: q,
		quit:    quit,
		logger:  logger,
		now:     time.Now,
		last:    make(map[Type]Result),
	}
}

// Scan reads every activity of type t from the content book. Only scans with
// equal options share a script, so a caller asking for updates always sees
// them.
func (s *Service) Scan(ctx context.Context, t Type, opts ScanOptions) (Result, error) {
	key := fmt.Sprintf("%s/first=%t/updates=%t", t, opts.FirstPageOnly, opts.ShowUpdates)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.scan(t, opts)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight content book scan", zap.String("key", key))
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Service) scan(t Type, opts ScanOptions) (Result, error) {
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)

	ok := s.queries.QueryContentBook(ScanRequest{
		Type:          t,
		ShowUpdates:   opts.ShowUpdates,
		FirstPageOnly: opts.FirstPageOnly,
		OnResult: func(activities []Info, progress []styled.Text) {
			done <- outcome{res: Result{
				Type:          t,
				Activities:    activities,
				Progress:      progress,
				ScannedAt:     s.now(),
				FirstPageOnly: opts.FirstPageOnly,
			}}
		},
		OnError: func(err error) {
			done <- outcome{err: err}
		},
	})
	if !ok {
		return Result{}, ErrStopped
	}

	select {
	case o := <-done:
		if o.err != nil {
			return Result{}, o.err
		}
		s.mu.Lock()
		s.last[t] = o.res
		s.mu.Unlock()
		s.logger.Info("content book scanned",
			zap.String("type", t.String()),
			zap.Int("activities", len(o.res.Activities)))
		return o.res, nil
	case <-s.quit:
		return Result{}, ErrStopped
	}
}

// Last returns the most recent successful scan of t.
func (s *Service) Last(t Type) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.last[t]
	return res, ok
}

// Track toggles tracking of the named activity. The cached scan of t is
// dropped since its tracked flags are now stale.
func (s *Service) Track(ctx context.Context, name string, t Type) error {
	done := make(chan error, 1)
	if !s.queries.ToggleTracking(name, t, func(err error) { done <- err }) {
		return ErrStopped
	}

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.last, t)
		s.mu.Unlock()
		s.logger.Info("activity tracking toggled", zap.String("activity", name), zap.String("type", t.String()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrStopped
	}
}
