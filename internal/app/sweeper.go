package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
)

// Expirer is the part of ReservationService the sweeper drives.
type Expirer interface {
	NextExpiry(ctx context.Context) (*time.Time, error)
	ExpireDue(ctx context.Context) (int, error)
}

const (
	defaultSweepIdle    = time.Minute
	defaultSweepBackoff = 30 * time.Second
	lockedRetryDelay    = time.Second
)

// ExpirySweeper sleeps until the soonest pending deadline instead of
// polling on a fixed interval.
type ExpirySweeper struct {
	expirer Expirer
	clock   clock.Clock
	logger  *zap.Logger
	tracer  trace.Tracer
	idle    time.Duration
	backoff time.Duration
	wakeCh  chan struct{}
}

type SweeperOption func(*ExpirySweeper)

// WithSweepIdle sets how long to sleep when nothing is pending.
func WithSweepIdle(d time.Duration) SweeperOption {
	return func(s *ExpirySweeper) {
		if d > 0 {
			s.idle = d
		}
	}
}

// WithSweepBackoff sets the fixed delay after a failed sweep.
func WithSweepBackoff(d time.Duration) SweeperOption {
	return func(s *ExpirySweeper) {
		if d > 0 {
			s.backoff = d
		}
	}
}

func WithSweepLogger(l *zap.Logger) SweeperOption {
	return func(s *ExpirySweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewExpirySweeper(expirer Expirer, clk clock.Clock, opts ...SweeperOption) *ExpirySweeper {
	s := &ExpirySweeper{
		expirer: expirer,
		clock:   clk,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		idle:    defaultSweepIdle,
		backoff: defaultSweepBackoff,
		wakeCh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wake interrupts the current sleep so the next deadline is recomputed.
// It never blocks.
func (s *ExpirySweeper) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled. Errors are logged and retried after
// the backoff; Run itself never fails.
func (s *ExpirySweeper) Run(ctx context.Context) {
	s.logger.Info("expiry sweeper started")
	defer s.logger.Info("expiry sweeper stopped")

	for {
		delay, err := s.nextDelay(ctx)
		if err != nil {
			s.logger.Error("next expiry lookup failed", zap.Error(err))
			delay = s.backoff
		}

		switch s.sleep(ctx, delay) {
		case wakeCancelled:
			return
		case wakeEarly:
			continue
		}

		n, err := s.SweepOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("expiry sweep failed", zap.Error(err), zap.Duration("backoff", s.backoff))
			if s.sleep(ctx, s.backoff) == wakeCancelled {
				return
			}
			continue
		}
		// Due rows held by another transaction are skipped; don't spin on them.
		if n == 0 && delay == 0 {
			if s.sleep(ctx, min(s.backoff, lockedRetryDelay)) == wakeCancelled {
				return
			}
		}
	}
}

// SweepOnce expires everything due now.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ExpirySweeper.SweepOnce")
	defer span.End()

	n, err := s.expirer.ExpireDue(ctx)
	span.SetAttributes(attribute.Int("reservations.expired", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return n, err
	}
	if n > 0 {
		s.logger.Info("expired reservations", zap.Int("count", n))
	}
	return n, nil
}

func (s *ExpirySweeper) nextDelay(ctx context.Context) (time.Duration, error) {
	next, err := s.expirer.NextExpiry(ctx)
	if err != nil {
		return 0, err
	}
	if next == nil {
		return s.idle, nil
	}
	return max(0, next.Sub(s.clock.Now())), nil
}

type wakeReason int

const (
	wakeTimer wakeReason = iota
	wakeEarly
	wakeCancelled
)

func (s *ExpirySweeper) sleep(ctx context.Context, d time.Duration) wakeReason {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wakeCancelled
	case <-s.wakeCh:
		return wakeEarly
	case <-timer.C:
		return wakeTimer
	}
}
