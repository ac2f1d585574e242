package rabbitmq

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var (
	publishMetricsOnce sync.Once

	publishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_amqp_published_total",
			Help: "Total number of events published to RabbitMQ.",
		},
		[]string{"exchange"},
	)
	publishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of failed RabbitMQ publishes.",
		},
		[]string{"exchange"},
	)
)

// RegisterMetrics registers the publish counters. Safe to call more than once.
func RegisterMetrics(reg prometheus.Registerer) {
	publishMetricsOnce.Do(func() {
		reg.MustRegister(publishedTotal, publishErrorsTotal)
	})
}

// Publisher emits domain events (message.created, friendship.created, audit
// logs) onto a topic exchange keyed by routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewPublisher connects to RabbitMQ and declares the durable topic exchange
// the service publishes on.
func NewPublisher(amqpURL, exchange string) (Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &amqpPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		publishErrorsTotal.WithLabelValues(p.exchange).Inc()
		return amqp.ErrClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		publishErrorsTotal.WithLabelValues(p.exchange).Inc()
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		publishErrorsTotal.WithLabelValues(p.exchange).Inc()
		return err
	}

	publishedTotal.WithLabelValues(p.exchange).Inc()
	return nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops events. Used when AMQP_URL
// is unset or the broker is unreachable; chat delivery does not depend on the
// event stream.
func NewNoopPublisher() Publisher { return &noopPublisher{} }

func (n *noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	log.Printf("warning: event publishing disabled; dropping %s", routingKey)
	return nil
}

func (n *noopPublisher) Close() error { return nil }
