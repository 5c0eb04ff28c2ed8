package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resto_platform_backend/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Enqueuer enqueues background jobs. Enqueue either succeeds or returns an
// error; the API never blocks on job completion.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) error
}

// Publisher is the AMQP-backed Enqueuer.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker, declares the topic exchange and the four job
// queues with their bindings, and returns a ready Publisher.
func Connect(amqpURL string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange: %w", err)
	}
	for queue, binding := range QueueBindings {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, binding, Exchange, false, nil); err != nil {
			return fmt.Errorf("binding queue %s: %w", queue, err)
		}
	}
	return nil
}

// Enqueue publishes one job as a persistent JSON message.
func (p *Publisher) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	routingKey, ok := RoutingKeys[jobType]
	if !ok {
		return fmt.Errorf("unknown job type: %s", jobType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload for %s: %w", jobType, err)
	}
	body, err := json.Marshal(Envelope{Type: jobType, EnqueuedAt: time.Now(), Payload: raw})
	if err != nil {
		return fmt.Errorf("marshalling envelope for %s: %w", jobType, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx,
		Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", jobType, err)
	}

	utils.LogDebug("Job enqueued", map[string]interface{}{"type": jobType, "routing_key": routingKey})
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
