package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/observability/metrics"
)

const (
	defaultBuffer      = 256
	defaultDialTimeout = 3 * time.Second
	publishTimeout     = 3 * time.Second
	drainTimeout       = 5 * time.Second
)

// ErrBufferFull is returned when events arrive faster than the broker takes
// them.  The event is dropped.
var ErrBufferFull = errors.New("order event buffer full")

// dial connects with a bounded TCP connect and AMQP handshake.
func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Dial:      amqp.DefaultDial(timeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
}

// Publisher sends OrderPlacedEvents to a durable queue from a background
// goroutine.  Requests only hand events over; the broker connection is
// opened lazily by Run and re-dialled after any failure.
type Publisher struct {
	url         string
	queue       string
	log         *slog.Logger
	dialTimeout time.Duration
	events      chan model.Order

	// owned by the Run goroutine
	conn *amqp.Connection
	ch   *amqp.Channel
}

// PublisherOption customizes a Publisher.
type PublisherOption func(*Publisher)

// WithBuffer sets how many events may wait for the broker.
func WithBuffer(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.events = make(chan model.Order, n)
		}
	}
}

// WithDialTimeout bounds connecting to the broker.
func WithDialTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is sent
// until Run is started.
func NewPublisher(url, queue string, log *slog.Logger, opts ...PublisherOption) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		url:         url,
		queue:       queue,
		log:         log,
		dialTimeout: defaultDialTimeout,
		events:      make(chan model.Order, defaultBuffer),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// PublishOrderPlaced queues the event for o and returns at once.  When the
// buffer is full the event is dropped and ErrBufferFull returned.
func (p *Publisher) PublishOrderPlaced(_ context.Context, o model.Order) error {
	select {
	case p.events <- o:
		return nil
	default:
		metrics.ObserveEventPublish("dropped")
		return ErrBufferFull
	}
}

// Run sends queued events until ctx is cancelled, then makes one bounded
// attempt to flush what is still buffered and closes the connection.
func (p *Publisher) Run(ctx context.Context) {
	defer p.reset()
	for {
		select {
		case o := <-p.events:
			p.send(ctx, o)
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case o := <-p.events:
			if ctx.Err() != nil {
				metrics.ObserveEventPublish("dropped")
				continue
			}
			p.send(ctx, o)
		default:
			return
		}
	}
}

// send publishes one event as a persistent message on the default exchange.
// Failures are logged and counted; the event is not retried.
func (p *Publisher) send(ctx context.Context, o model.Order) {
	if err := p.publish(ctx, o); err != nil {
		p.log.Warn("publish order placed event", slog.Uint64("order_id", o.ID), slog.String("error", err.Error()))
	}
}

func (p *Publisher) publish(ctx context.Context, o model.Order) error {
	body, err := json.Marshal(NewOrderPlacedEvent(o))
	if err != nil {
		metrics.ObserveEventPublish("marshal_error")
		return fmt.Errorf("marshal order event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		metrics.ObserveEventPublish("dial_error")
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		metrics.ObserveEventPublish("publish_error")
		return fmt.Errorf("publish order event: %w", err)
	}
	metrics.ObserveEventPublish("ok")
	return nil
}

// channel returns an open channel with the queue declared, dialling if needed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := dial(p.url, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Info("rabbitmq publisher connected", slog.String("queue", p.queue))
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
