package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/ports"
)

// RabbitMQQueue publishes each subject to a durable fanout exchange of the
// same name. Every subscriber gets its own exclusive queue, and subscriptions
// are re-bound after a reconnect.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	mu       sync.RWMutex
	declared map[string]bool
	subs     []subscription
	closed   bool
	log      *zap.Logger
}

type subscription struct {
	subject string
	handler func(data []byte) error
}

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(url string, log *zap.Logger) (ports.MessageQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:     conn,
		channel:  ch,
		url:      url,
		declared: make(map[string]bool),
		log:      log,
	}

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ", zap.String("url", url))
	return q, nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	if err := q.declare(subject); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	err := q.channel.Publish(
		subject, "", false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	return nil
}

// declare creates the exchange for subject once per channel.
func (q *RabbitMQQueue) declare(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}
	if q.declared[subject] {
		return nil
	}
	if err := q.channel.ExchangeDeclare(subject, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	q.declared[subject] = true
	return nil
}

func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	if err := q.consume(subject, handler); err != nil {
		return err
	}

	q.mu.Lock()
	q.subs = append(q.subs, subscription{subject: subject, handler: handler})
	q.mu.Unlock()

	q.log.Info("Subscribed to RabbitMQ exchange", zap.String("exchange", subject))
	return nil
}

// consume binds a fresh exclusive queue to the subject's exchange and drains
// it into handler until the channel closes.
func (q *RabbitMQQueue) consume(subject string, handler func(data []byte) error) error {
	if err := q.declare(subject); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	queue, err := q.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := q.channel.QueueBind(queue.Name, "", subject, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	msgs, err := q.channel.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Warn("Translation event handler failed",
					zap.String("exchange", subject),
					zap.Error(err),
				)
			}
		}
	}()
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func (q *RabbitMQQueue) monitorConnection() {
	for {
		q.mu.RLock()
		notify := q.conn.NotifyClose(make(chan *amqp.Error, 1))
		q.mu.RUnlock()

		reason, ok := <-notify
		if !ok || reason == nil {
			return
		}
		q.log.Warn("RabbitMQ connection lost, reconnecting", zap.String("reason", reason.Reason))

		b := backoff.NewExponentialBackOff()
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 0
		err := backoff.RetryNotify(q.reconnect, b, func(err error, wait time.Duration) {
			q.log.Error("Failed to reconnect to RabbitMQ", zap.Duration("retry_in", wait), zap.Error(err))
		})
		if err != nil {
			// closed while reconnecting
			return
		}

		q.mu.RLock()
		subs := append([]subscription(nil), q.subs...)
		q.mu.RUnlock()
		for _, sub := range subs {
			if err := q.consume(sub.subject, sub.handler); err != nil {
				q.log.Error("Failed to restore subscription", zap.String("exchange", sub.subject), zap.Error(err))
			}
		}
		q.log.Info("Reconnected to RabbitMQ", zap.Int("subscriptions", len(subs)))
	}
}

func (q *RabbitMQQueue) reconnect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		ch.Close()
		conn.Close()
		return backoff.Permanent(fmt.Errorf("rabbitmq: queue closed"))
	}
	q.conn = conn
	q.channel = ch
	q.declared = make(map[string]bool)
	return nil
}
