package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dialTimeout    = 2 * time.Second
	publishTimeout = 2 * time.Second

	// DefaultBuffer is the number of events a Publisher holds while the
	// broker is slow or away.
	DefaultBuffer = 256
)

// ErrBufferFull is returned by PublishFilmsQueried when events arrive faster
// than the broker accepts them.  The event is dropped.
var ErrBufferFull = errors.New("query event buffer full")

// Publisher publishes FilmsQueriedEvent messages to RabbitMQ.
//
// PublishFilmsQueried only enqueues; a single Run goroutine owns the broker
// connection and drains the queue, dialing lazily and re-dialing after any
// failure.  A slow or unreachable broker therefore never delays the caller.
type Publisher struct {
	url    string
	log    *zap.SugaredLogger
	events chan FilmsQueriedEvent

	// owned by Run
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url holding up to
// buffer pending events.  No connection is made until Run sends the first
// event.
func NewPublisher(url string, buffer int, log *zap.SugaredLogger) *Publisher {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Publisher{
		url:    url,
		log:    log.Named("publisher"),
		events: make(chan FilmsQueriedEvent, buffer),
	}
}

// PublishFilmsQueried queues ev for delivery.  It never blocks.
func (p *Publisher) PublishFilmsQueried(_ context.Context, ev FilmsQueriedEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers queued events until ctx is cancelled, then closes the broker
// connection.  Events still queued at that point are dropped.
func (p *Publisher) Run(ctx context.Context) {
	defer p.reset()
	for {
		select {
		case <-ctx.Done():
			if n := len(p.events); n > 0 {
				p.log.Warnw("dropping unsent query events", "count", n)
			}
			return
		case ev := <-p.events:
			if ctx.Err() != nil {
				p.log.Warnw("dropping unsent query events", "count", len(p.events)+1)
				return
			}
			if err := p.send(ctx, ev); err != nil {
				p.log.Warnw("publish query event failed", "filter", ev.Filter, "error", err)
			}
		}
	}
}

// send publishes ev to the films.queried queue as a persistent JSON message.
func (p *Publisher) send(ctx context.Context, ev FilmsQueriedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, "", FilmsQueriedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns an open channel, dialing when needed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(FilmsQueriedQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.log.Debugw("connected to broker", "queue", FilmsQueriedQueue)
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// NopPublisher discards events.  It is used when query events are disabled.
type NopPublisher struct{}

// PublishFilmsQueried implements the publisher contract and always succeeds.
func (NopPublisher) PublishFilmsQueried(context.Context, FilmsQueriedEvent) error { return nil }
