package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("events: publisher closed")

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

type dialFunc func(url, queue string) (channel, io.Closer, error)

// AMQPPublisher publishes persistent JSON messages to one durable queue
// through the default exchange. A lost connection is redialed on the next
// Publish or Healthy call.
type AMQPPublisher struct {
	mu     sync.Mutex
	url    string
	queue  string
	dial   dialFunc
	conn   io.Closer
	ch     channel
	lost   chan *amqp.Error
	closed bool
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, queue: queue, dial: dialAMQP}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialAMQP(url, queue string) (channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return ch, conn, nil
}

// connect requires p.mu.
func (p *AMQPPublisher) connect() error {
	ch, conn, err := p.dial(p.url, p.queue)
	if err != nil {
		return err
	}
	p.ch, p.conn = ch, conn
	p.lost = ch.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// drop releases the current session; requires p.mu.
func (p *AMQPPublisher) drop() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	p.ch, p.conn, p.lost = nil, nil, nil
	return err
}

// ensure redials when the broker closed the channel; requires p.mu.
func (p *AMQPPublisher) ensure() error {
	if p.closed {
		return ErrClosed
	}
	if p.ch != nil {
		select {
		case cause := <-p.lost:
			ev := log.Warn().Str("queue", p.queue)
			if cause != nil {
				ev = ev.Str("reason", cause.Reason).Int("code", cause.Code)
			}
			ev.Msg("amqp channel closed, reconnecting")
			_ = p.drop()
		default:
			return nil
		}
	}
	if err := p.connect(); err != nil {
		return fmt.Errorf("amqp reconnect: %w", err)
	}
	return nil
}

// Publish marshals e and sends it. amqp channels are not safe for
// concurrent publishing, hence the mutex.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(e.Type),
		Timestamp:    e.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensure(); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	// The close notification can trail the failed publish by a moment.
	_ = p.drop()
	if err := p.connect(); err != nil {
		return fmt.Errorf("amqp reconnect: %w", err)
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
}

// Healthy reports whether the broker is reachable, redialing a lost
// connection first. It backs the /ready check.
func (p *AMQPPublisher) Healthy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensure()
}

// Close releases the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.drop()
}
