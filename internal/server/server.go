package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/farellandr/ticketgate/config"
	"github.com/farellandr/ticketgate/internal/auth"
	"github.com/farellandr/ticketgate/internal/checkin"
	"github.com/farellandr/ticketgate/internal/events"
	"github.com/farellandr/ticketgate/internal/handlers"
	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/mailer"
	"github.com/farellandr/ticketgate/internal/payments"
	"github.com/farellandr/ticketgate/internal/qr"
	"github.com/farellandr/ticketgate/internal/queue"
	"github.com/farellandr/ticketgate/internal/registrations"
	"github.com/farellandr/ticketgate/internal/storage"
	"github.com/farellandr/ticketgate/internal/ticket"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// App holds every component built from one Config.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	DB            *gorm.DB
	Events        *events.Store
	Registrations *registrations.Store
	Operators     *auth.Operators
	Tokens        *auth.Tokens
	Gateway       *payments.Gateway
	Orders        *payments.OrderService
	Issuer        *ticket.Issuer
	Sweeper       *ticket.Sweeper
	Gate          *checkin.Gate
	Bucket        storage.Bucket
	Signer        *storage.Signer
	Mail          mailer.Sender

	broker  *queue.Client
	worker  *queue.Worker
	closers []func() error
}

func NewApp(cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*App, error) {
	bucket, signer, closeBucket, err := storage.Open(storage.Options{
		Driver:        cfg.Storage.Driver,
		Root:          cfg.Storage.Root,
		BoltPath:      cfg.Storage.BoltPath,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		SigningKey:    cfg.Storage.SigningKey,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	builder, err := qr.NewBuilder(cfg.Ticket.PayloadForm, cfg.Ticket.VerifyBaseURL)
	if err != nil {
		_ = closeBucket()
		return nil, err
	}

	node, err := snowflake.NewNode(cfg.Gateway.ReceiptNode)
	if err != nil {
		_ = closeBucket()
		return nil, fmt.Errorf("receipt ids: %w", err)
	}

	a := &App{
		cfg:           cfg,
		log:           log,
		DB:            db,
		Events:        events.NewStore(db),
		Registrations: registrations.NewStore(db, registrations.NewCodeGenerator(cfg.Ticket.CodePrefix)),
		Operators:     auth.NewOperators(db),
		Tokens:        auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Bucket:        bucket,
		Signer:        signer,
		Mail: mailer.New(mailer.Config{
			SendGridKey:  cfg.Mail.SendGridKey,
			SendGridHost: cfg.Mail.SendGridHost,
			SMTPAddr:     cfg.Mail.SMTPAddr,
			SMTPUser:     cfg.Mail.SMTPUser,
			SMTPPassword: cfg.Mail.SMTPPassword,
			From:         cfg.Mail.From,
			FromName:     cfg.Mail.FromName,
			ReplyTo:      cfg.Mail.ReplyTo,
		}),
		closers: []func() error{closeBucket},
	}

	a.Gateway = payments.NewGateway(payments.GatewayConfig{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	})
	a.Orders = payments.NewOrderService(a.Gateway, a.Events, cfg.Gateway.Currency, cfg.Ticket.DefaultEventSlug, node)

	a.Issuer = ticket.NewIssuer(
		a.Registrations,
		a.Events,
		payments.NewVerifier(cfg.Gateway.KeySecret, a.Gateway),
		bucket,
		a.Mail,
		builder,
		ticket.Options{
			SignedURLTTL:     cfg.Storage.SignedURLTTL,
			QRSize:           cfg.Ticket.QRSize,
			TicketURL:        cfg.Ticket.SiteTicketURL,
			DefaultEventSlug: cfg.Ticket.DefaultEventSlug,
		},
		log,
	)
	a.Sweeper = ticket.NewSweeper(a.Issuer, ticket.SweeperOptions{
		Interval:    cfg.Sweeper.Interval,
		Grace:       cfg.Sweeper.Grace,
		MaxAttempts: cfg.Sweeper.MaxAttempts,
		BatchSize:   cfg.Sweeper.BatchSize,
	}, log)
	a.Gate = checkin.NewGate(a.Registrations, log)

	if !a.Mail.Enabled() {
		log.Warn().Msg("mail is not configured; tickets are available on the ticket page only")
	}
	return a, nil
}

// EnableQueue moves fulfillment onto RabbitMQ. Without a URL fulfillment stays inline.
func (a *App) EnableQueue() error {
	if a.cfg.Queue.RabbitURL == "" {
		return nil
	}

	client, err := queue.Dial(a.cfg.Queue.RabbitURL, a.cfg.Queue.Exchange, a.cfg.Queue.Queue, a.log)
	if err != nil {
		return err
	}
	a.broker = client
	a.closers = append(a.closers, func() error { client.Close(); return nil })
	a.Issuer.SetDispatcher(queue.NewPublisher(client))
	a.worker = queue.NewWorker(client, a.Issuer, a.cfg.Queue.MaxAttempts, a.log)
	return nil
}

func (a *App) Handler() *handlers.Handler {
	return handlers.New(handlers.Deps{
		Events:        a.Events,
		Orders:        a.Orders,
		Issuer:        a.Issuer,
		Registrations: a.Registrations,
		Gate:          a.Gate,
		Operators:     a.Operators,
		Tokens:        a.Tokens,
		Gateway:       a.Gateway,
		Bucket:        a.Bucket,
		Files:         a.Signer,
		Admins:        a.cfg.Auth.Admins,
		Managers:      a.cfg.Auth.Managers,
		Release:       a.cfg.Release,
		Log:           a.log.With().Str("component", "http").Logger(),
	})
}

// Run serves HTTP and the background workers until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := helpers.RegisterValidations(); err != nil {
		return fmt.Errorf("register validations: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTP.Port,
		Handler:           NewRouter(a.Handler(), a.Tokens, a.cfg, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if a.worker != nil {
		if err := a.worker.Start(workerCtx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}
	a.Sweeper.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("release", a.cfg.Release).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case err := <-serverErr:
		runErr = fmt.Errorf("server: %w", err)
	}

	cancelWorkers()
	a.Sweeper.Stop()
	if a.worker != nil {
		a.worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}
	return runErr
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
