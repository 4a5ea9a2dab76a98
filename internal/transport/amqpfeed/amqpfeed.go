// Package amqpfeed carries change events over a RabbitMQ topic exchange.
// A relay publishes every event under "<table>.<kind>"; each subscriber
// gets its own exclusive queue bound to "<table>.*".
package amqpfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alexanderramin/sitesync/internal/changefeed"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeName is the topic exchange change events are published to.
const ExchangeName = "sitesync.changes"

// RoutingKey returns the routing key for e.
func RoutingKey(e changefeed.Event) string {
	return e.Table + "." + string(e.Kind)
}

// BindingKey returns the binding pattern for every event on table.
func BindingKey(table string) string {
	return table + ".*"
}

// Decode parses a delivery body. The routing key fills in table and kind
// when the body omits them.
func Decode(routingKey string, body []byte) (changefeed.Event, error) {
	var e changefeed.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return changefeed.Event{}, fmt.Errorf("decoding delivery: %w", err)
	}
	if table, kind, ok := strings.Cut(routingKey, "."); ok {
		if e.Table == "" {
			e.Table = table
		}
		if e.Kind == "" {
			e.Kind = changefeed.Kind(kind)
		}
	}
	if e.Table == "" {
		return changefeed.Event{}, errors.New("decoding delivery: missing table")
	}
	kind, err := changefeed.ParseKind(string(e.Kind))
	if err != nil {
		return changefeed.Event{}, fmt.Errorf("decoding delivery: %w", err)
	}
	e.Kind = kind
	return e, nil
}

func declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// Transport subscribes to change events over one AMQP connection.
type Transport struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// Dial connects to the broker at url.
func Dial(url string, logger *zap.Logger) (*Transport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{conn: conn, logger: logger}, nil
}

func (t *Transport) Close() error {
	return t.conn.Close()
}

func (t *Transport) Subscribe(ctx context.Context, sub changefeed.Subscription, h changefeed.Handler) (changefeed.Handle, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	q, err := t.bind(ch, sub.Table)
	if err != nil {
		ch.Close()
		return nil, err
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consuming %s: %w", q.Name, err)
	}

	s := &subscription{ch: ch, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for msg := range msgs {
			e, err := Decode(msg.RoutingKey, msg.Body)
			if err != nil {
				t.logger.Warn("undecodable delivery dropped", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
				_ = msg.Nack(false, false)
				continue
			}
			if sub.Filter.MatchesEvent(e) {
				h(e)
			}
			if err := msg.Ack(false); err != nil {
				t.logger.Warn("ack failed", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
			}
		}
	}()
	return s, nil
}

func (t *Transport) bind(ch *amqp.Channel, table string) (amqp.Queue, error) {
	if err := declareExchange(ch); err != nil {
		return amqp.Queue{}, fmt.Errorf("declaring exchange: %w", err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declaring queue for %s: %w", table, err)
	}
	if err := ch.QueueBind(q.Name, BindingKey(table), ExchangeName, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("binding queue for %s: %w", table, err)
	}
	return q, nil
}

type subscription struct {
	once sync.Once
	ch   *amqp.Channel
	done chan struct{}
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.ch.Close()
		<-s.done
	})
	return err
}

// Publisher publishes change events to the exchange.
type Publisher struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Publish sends e under its routing key.
func (p *Publisher) Publish(ctx context.Context, e changefeed.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, ExchangeName, RoutingKey(e), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", RoutingKey(e), err)
	}
	return nil
}
