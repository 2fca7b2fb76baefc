package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/ticket"
	"github.com/rs/zerolog"
)

type FulfillMessage struct {
	RegistrationID uint64 `json:"registrationId"`
}

// Publisher hands fulfillment to the worker through the broker.
type Publisher struct {
	broker Broker
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) Dispatch(ctx context.Context, registrationID uint64) error {
	body, err := json.Marshal(FulfillMessage{RegistrationID: registrationID})
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, body)
}

type Fulfiller interface {
	Fulfill(ctx context.Context, id uint64, force bool) (*ticket.Fulfillment, error)
}

type Worker struct {
	broker      Broker
	fulfiller   Fulfiller
	maxAttempts int
	log         zerolog.Logger
	done        chan struct{}
	cancel      context.CancelFunc
}

// NewWorker builds a consumer. After maxAttempts failed deliveries a row is left
// to the sweeper instead of being requeued.
func NewWorker(broker Broker, fulfiller Fulfiller, maxAttempts int, log zerolog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		broker:      broker,
		fulfiller:   fulfiller,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "fulfillment-worker").Logger(),
		done:        make(chan struct{}),
	}
}

// Handle processes one message. Malformed messages and unknown rows are dropped;
// storage and email failures are returned so the broker redelivers.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg FulfillMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.RegistrationID == 0 {
		w.log.Error().Err(err).Str("body", string(body)).Msg("dropping malformed message")
		return nil
	}

	log := w.log.With().Uint64("registration_id", msg.RegistrationID).Logger()

	res, err := w.fulfiller.Fulfill(ctx, msg.RegistrationID, false)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Warn().Msg("registration gone, dropping message")
			return nil
		}
		return fmt.Errorf("fulfill %d: %w", msg.RegistrationID, err)
	}
	if failure := res.Err(); failure != nil && apperr.Retryable(failure) {
		if res.Registration != nil && res.Registration.FulfillmentAttempts >= w.maxAttempts {
			log.Warn().Err(failure).Int("attempts", res.Registration.FulfillmentAttempts).Msg("giving up, leaving row to sweeper")
			return nil
		}
		return failure
	}

	log.Info().Bool("qr_issued", res.QRIssued).Bool("emailed", res.Emailed).Msg("message handled")
	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	cctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.broker.Consume(cctx, func(body []byte) error { return w.Handle(cctx, body) }); err != nil {
		cancel()
		close(w.done)
		return err
	}

	go func() {
		defer close(w.done)
		<-cctx.Done()
		w.log.Info().Msg("worker stopped")
	}()

	w.log.Info().Msg("worker started")
	return nil
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}
