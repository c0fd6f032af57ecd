package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/infra/produce"
)

const maxRetries = 3

type DeliverySource interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type ObjectRemover interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Delete(ctx context.Context, bucket, key string) error
}

type RecordChecker interface {
	ExistsByBucketAndPath(ctx context.Context, bucket, path string) (bool, error)
}

// OrphanConsumer deletes objects whose metadata insert failed and whose
// immediate cleanup also failed.
type OrphanConsumer struct {
	channel DeliverySource
	store   ObjectRemover
	records RecordChecker
	logger  *infra.LoggerClient
	backoff func(attempt int) time.Duration
	wg      sync.WaitGroup
}

func NewOrphanConsumer(channel DeliverySource, store ObjectRemover, records RecordChecker, logger *infra.LoggerClient) *OrphanConsumer {
	return &OrphanConsumer{
		channel: channel,
		store:   store,
		records: records,
		logger:  logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

func (c *OrphanConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.OrphanDeleteQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register orphan consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Orphan Consumer] Started listening on queue: %s", produce.OrphanDeleteQueue)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Orphan Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Orphan Consumer] Channel closed")
					return
				}
				c.handleOrphanObject(ctx, msg)
			}
		}
	}()

	return nil
}

// Wait blocks until the consume loop has returned, including any message
// that was being handled when the context was cancelled.
func (c *OrphanConsumer) Wait() {
	c.wg.Wait()
}

func (c *OrphanConsumer) handleOrphanObject(ctx context.Context, msg amqp.Delivery) {
	var payload produce.OrphanObjectMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Orphan Consumer] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}
	if payload.BucketName == "" || payload.ObjectPath == "" {
		c.logger.WarningWithContextf(ctx, "[Orphan Consumer] Dropping message without bucket or path")
		_ = msg.Nack(false, false)
		return
	}

	c.logger.InfoWithContextf(ctx, "[Orphan Consumer] Removing '%s/%s' (%s)", payload.BucketName, payload.ObjectPath, payload.Reason)

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = c.removeOrphan(ctx, payload)
		if err == nil {
			_ = msg.Ack(false)
			return
		}

		c.logger.ErrorWithContextf(ctx, err, "[Orphan Consumer] Attempt %d/%d failed: %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				_ = msg.Nack(false, true)
				return
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	c.logger.ErrorWithContextf(ctx, err, "[Orphan Consumer] Failed after %d attempts, requeueing message", maxRetries)
	_ = msg.Nack(false, true)
}

// removeOrphan leaves the object alone when a record has claimed the key
// since the message was queued.
func (c *OrphanConsumer) removeOrphan(ctx context.Context, payload produce.OrphanObjectMessage) error {
	exists, err := c.records.ExistsByBucketAndPath(ctx, payload.BucketName, payload.ObjectPath)
	if err != nil {
		return fmt.Errorf("check file record: %w", err)
	}
	if exists {
		c.logger.InfoWithContextf(ctx, "[Orphan Consumer] '%s/%s' is referenced again, skipping", payload.BucketName, payload.ObjectPath)
		return nil
	}

	present, err := c.store.Exists(ctx, payload.BucketName, payload.ObjectPath)
	if err != nil {
		return fmt.Errorf("check object: %w", err)
	}
	if !present {
		c.logger.InfoWithContextf(ctx, "[Orphan Consumer] '%s/%s' is already gone", payload.BucketName, payload.ObjectPath)
		return nil
	}

	// the object or its bucket may still vanish between the check and the delete
	if err := c.store.Delete(ctx, payload.BucketName, payload.ObjectPath); err != nil && !errors.Is(err, entity.ErrNotFound) {
		return err
	}
	return nil
}
