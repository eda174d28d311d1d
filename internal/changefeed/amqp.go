package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// DefaultExchange is the fanout exchange every instance binds to.
const DefaultExchange = "kitchen.changes"

// AMQP fans change events out through a RabbitMQ fanout exchange. The
// publishing connection is opened lazily and re-dialed after a failure.
// Each Run binds its own exclusive, auto-deleted queue so every instance
// sees every event.
type AMQP struct {
	url      string
	exchange string
	log      *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQP(url string, log *zap.Logger) *AMQP {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQP{url: url, exchange: DefaultExchange, log: log.Named("changefeed.amqp")}
}

func (a *AMQP) declare(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(a.exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

// channel returns the publishing channel, dialing when needed. Caller holds mu.
func (a *AMQP) channel() (*amqp.Channel, error) {
	if a.ch != nil && !a.ch.IsClosed() {
		return a.ch, nil
	}
	a.resetLocked()
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := a.declare(ch); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	a.conn, a.ch = conn, ch
	return ch, nil
}

func (a *AMQP) resetLocked() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.conn, a.ch = nil, nil
}

// Publish sends ev as a persistent JSON message.
func (a *AMQP) Publish(ctx context.Context, ev model.ChangeEvent) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	ch, err := a.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, a.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		a.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff capped at 30s.
func (a *AMQP) Run(ctx context.Context, h Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(a.url)
		if err != nil {
			a.log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consume(ctx, conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		a.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (a *AMQP) consume(ctx context.Context, conn *amqp.Connection, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.log.Warn("set QoS failed", zap.Error(err))
	}
	if err := a.declare(ch); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", a.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	a.log.Info("consuming", zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ev, err := decode(d.Body)
			if err != nil {
				a.log.Warn("dropping malformed event", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			h(ctx, ev)
			_ = d.Ack(false)
		}
	}
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	return nil
}
