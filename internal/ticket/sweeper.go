package ticket

import (
	"context"
	"time"

	"github.com/farellandr/ticketgate/internal/registrations"
	"github.com/rs/zerolog"
)

type SweeperOptions struct {
	Interval    time.Duration
	Grace       time.Duration
	MaxAttempts int
	BatchSize   int
}

// Sweeper retries fulfillment for registrations whose QR upload or email did not land.
type Sweeper struct {
	issuer *Issuer
	opts   SweeperOptions
	log    zerolog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

func NewSweeper(issuer *Issuer, opts SweeperOptions, log zerolog.Logger) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Grace <= 0 {
		opts.Grace = 2 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Sweeper{
		issuer: issuer,
		opts:   opts,
		log:    log.With().Str("component", "sweeper").Logger(),
		done:   make(chan struct{}),
	}
}

// RunOnce makes one pass and returns how many rows it retried.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	pending, err := s.issuer.regs.PendingFulfillment(ctx, registrations.PendingQuery{
		OlderThan:    time.Now().Add(-s.opts.Grace),
		MaxAttempts:  s.opts.MaxAttempts,
		IncludeEmail: s.issuer.mail.Enabled(),
		Limit:        s.opts.BatchSize,
	})
	if err != nil {
		return 0, err
	}

	for _, reg := range pending {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if _, err := s.issuer.Fulfill(ctx, reg.ID, false); err != nil {
			s.log.Warn().Err(err).Uint64("registration_id", reg.ID).Msg("sweep fulfillment failed")
		}
	}
	if len(pending) > 0 {
		s.log.Info().Int("count", len(pending)).Msg("sweep pass done")
	}
	return len(pending), nil
}

func (s *Sweeper) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-cctx.Done():
				s.log.Info().Msg("sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(cctx); err != nil && cctx.Err() == nil {
					s.log.Error().Err(err).Msg("sweep pass failed")
				}
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}
