package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Handler processes one delivered work item. Deliveries are at-least-once
// and possibly concurrent for the same item, so Handle must be idempotent.
type Handler interface {
	// Queue names the stage queue this handler consumes
	Queue() string

	// Handle processes one work item to completion or failure
	Handle(ctx context.Context, msg model.WorkItem) error
}

// Consumer runs one stage handler against its queue
type Consumer struct {
	client      rabbitmq.Client
	handler     Handler
	consumerTag string
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

func NewConsumer(client rabbitmq.Client, handler Handler) *Consumer {
	return &Consumer{
		client:   client,
		handler:  handler,
		shutdown: make(chan struct{}),
	}
}

// Start launches the consume loop in a goroutine
func (c *Consumer) Start(ctx context.Context) {
	c.consumerTag = fmt.Sprintf("%s-consumer-%s", c.handler.Queue(), primitive.NewObjectID().Hex())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		log.Info().
			Str("queue", c.handler.Queue()).
			Str("consumerTag", c.consumerTag).
			Msg("Starting stage consumer")

		for {
			select {
			case <-ctx.Done():
				log.Info().Str("consumerTag", c.consumerTag).Msg("Context cancelled, stopping consumer")
				return
			case <-c.shutdown:
				log.Info().Str("consumerTag", c.consumerTag).Msg("Shutdown signal received, stopping consumer")
				return
			default:
			}

			deliveries, err := c.client.Consume(c.handler.Queue(), c.consumerTag)
			if err != nil {
				log.Error().
					Err(err).
					Str("queue", c.handler.Queue()).
					Msg("Failed to consume from queue")

				time.Sleep(5 * time.Second)
				continue
			}

			for delivery := range deliveries {
				c.processDelivery(ctx, delivery)
			}

			log.Warn().
				Str("queue", c.handler.Queue()).
				Str("consumerTag", c.consumerTag).
				Msg("Consumer channel closed, reconnecting...")

			time.Sleep(5 * time.Second)
		}
	}()
}

// Stop shuts the consume loop down and waits for in-flight work
func (c *Consumer) Stop() {
	close(c.shutdown)
	c.wg.Wait()
	log.Info().Str("queue", c.handler.Queue()).Msg("Stage consumer stopped")
}

// processDelivery handles a single delivery. Permanent failures ack the
// message so it fails only the one item; everything else requeues.
func (c *Consumer) processDelivery(ctx context.Context, delivery amqp.Delivery) {
	var msg model.WorkItem
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Error().Err(err).Str("queue", c.handler.Queue()).Msg("Malformed work item, rejecting")
		delivery.Nack(false, false)
		return
	}

	logger := log.With().
		Str("queue", c.handler.Queue()).
		Str("itemID", msg.ItemID).
		Str("batchID", msg.BatchID).
		Logger()

	err := c.handler.Handle(ctx, msg)
	if err == nil {
		logger.Info().Msg("Work item processed")
		delivery.Ack(false)
		return
	}

	if pipeline.IsPermanent(err) {
		// Not retryable: fail the one item, leave its siblings alone. The
		// reaper closes out the batch if this item was the last one standing.
		logger.Error().Err(err).Msg("Work item failed permanently, dropping")
		delivery.Ack(false)
		return
	}

	logger.Warn().Err(err).Msg("Work item failed transiently, requeueing")
	delivery.Nack(false, true)
}
