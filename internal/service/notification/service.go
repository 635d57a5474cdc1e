package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/email"
	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/service/password"
	"github.com/yupeng0512/user-management/pkg/circuitbreaker"
	"github.com/yupeng0512/user-management/pkg/messaging"
	"github.com/yupeng0512/user-management/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Deliverer hands a password event to its final or intermediate destination
type Deliverer interface {
	Deliver(ctx context.Context, event *model.PasswordEvent) error
}

// MailDeliverer turns events into emails
type MailDeliverer struct {
	mailer      email.Service
	frontendURL string
	resetTTL    time.Duration
}

func NewMailDeliverer(mailer email.Service, frontendURL string, resetTTL time.Duration) *MailDeliverer {
	return &MailDeliverer{
		mailer:      mailer,
		frontendURL: frontendURL,
		resetTTL:    resetTTL,
	}
}

func (d *MailDeliverer) Deliver(ctx context.Context, event *model.PasswordEvent) error {
	switch event.Type {
	case model.PasswordEventResetRequested:
		link := password.ResetLink(d.frontendURL, event.Token)
		return d.mailer.SendPasswordReset(ctx, event.Email, event.Username, link, d.resetTTL)
	case model.PasswordEventChanged:
		return d.mailer.SendPasswordChanged(ctx, event.Email, event.Username, event.IPAddress, event.OccurredAt)
	default:
		return fmt.Errorf("unsupported password event %q", event.Type)
	}
}

// QueueDeliverer publishes events for cmd/worker to mail
type QueueDeliverer struct {
	broker  messaging.Broker
	channel string
}

func NewQueueDeliverer(broker messaging.Broker, channel string) *QueueDeliverer {
	return &QueueDeliverer{
		broker:  broker,
		channel: channel,
	}
}

func (d *QueueDeliverer) Deliver(ctx context.Context, event *model.PasswordEvent) error {
	return d.broker.Publish(ctx, d.channel, event)
}

type Option func(*Dispatcher)

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher is the password.Notifier used by the API. Every send runs in its
// own goroutine on a context detached from the request; failures are logged
// and counted, never returned.
type Dispatcher struct {
	deliverer Deliverer
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

var _ password.Notifier = (*Dispatcher)(nil)

func NewDispatcher(deliverer Deliverer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deliverer: deliverer,
		timeout:   defaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) SendChangeNotice(ctx context.Context, email, username, ipAddress string) {
	d.dispatch(ctx, &model.PasswordEvent{
		Type:       model.PasswordEventChanged,
		Email:      email,
		Username:   username,
		IPAddress:  ipAddress,
		OccurredAt: d.now(),
	})
}

func (d *Dispatcher) SendResetLink(ctx context.Context, email, token, username string) {
	d.dispatch(ctx, &model.PasswordEvent{
		Type:       model.PasswordEventResetRequested,
		Email:      email,
		Username:   username,
		Token:      token,
		OccurredAt: d.now(),
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, event *model.PasswordEvent) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.deliverer.Deliver(ctx, event); err != nil {
			d.metrics.NotificationFailed(string(event.Type))
			log.Warn().
				Err(err).
				Str("event", string(event.Type)).
				Msg("Failed to deliver password notification")
		}
	}()
}

// Wait blocks until every in-flight send has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Consumer drains the password event queue and mails each event behind a
// circuit breaker so a dead SMTP relay is not hammered.
type Consumer struct {
	broker    messaging.Broker
	channel   string
	deliverer Deliverer
	breaker   *circuitbreaker.CircuitBreaker
	metrics   *metrics.Metrics
}

func NewConsumer(broker messaging.Broker, channel string, deliverer Deliverer, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics) *Consumer {
	return &Consumer{
		broker:    broker,
		channel:   channel,
		deliverer: deliverer,
		breaker:   breaker,
		metrics:   m,
	}
}

// Run blocks until ctx is done
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Str("channel", c.channel).Msg("Consuming password events")
	return messaging.Consume(ctx, c.broker, c.channel, c.handle)
}

func (c *Consumer) handle(ctx context.Context, raw []byte) error {
	var event model.PasswordEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("failed to decode password event: %w", err)
	}

	err := c.breaker.Execute(func() error {
		return c.deliverer.Deliver(ctx, &event)
	})
	if err != nil {
		c.metrics.NotificationFailed(string(event.Type))
		return fmt.Errorf("failed to deliver %s: %w", event.Type, err)
	}
	return nil
}
