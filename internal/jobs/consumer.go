package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"resto_platform_backend/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one decoded job envelope.
type Handler func(ctx context.Context, env Envelope) error

// Consumer drains the job queues and dispatches envelopes to registered
// handlers by job type. Jobs without a handler are acked and dropped with a
// warning; a requeue loop for an unknown type would never terminate.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	handlers map[string]Handler
}

// NewConsumer dials the broker and declares the same topology the publisher
// uses, so either side can start first.
func NewConsumer(amqpURL string, prefetch int) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setting prefetch: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, handlers: map[string]Handler{}}, nil
}

// Handle registers the handler for one job type.
func (c *Consumer) Handle(jobType string, h Handler) {
	c.handlers[jobType] = h
}

// Run consumes every job queue until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for queue := range QueueBindings {
		deliveries, err := c.ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consuming queue %s: %w", queue, err)
		}

		wg.Add(1)
		go func(queue string, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.dispatch(ctx, queue, d)
				}
			}
		}(queue, deliveries)
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Consumer) dispatch(ctx context.Context, queue string, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		utils.LogError(err, "Dropping undecodable job message from "+queue)
		d.Ack(false)
		return
	}

	handler, ok := c.handlers[env.Type]
	if !ok {
		utils.LogWarn("No handler for job type", map[string]interface{}{"type": env.Type, "queue": queue})
		d.Ack(false)
		return
	}

	if err := handler(ctx, env); err != nil {
		utils.LogError(err, "Job handler failed: "+env.Type)
		// One redelivery attempt; a message that failed twice is dead-lettered
		// by being dropped rather than looping forever.
		d.Nack(false, !d.Redelivered)
		return
	}
	d.Ack(false)
}

// Close releases the channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
