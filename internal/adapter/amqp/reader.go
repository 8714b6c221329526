// Package amqp consumes intensity snapshots from a RabbitMQ queue, as an
// alternative to the Kafka source for deployments that already run a broker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/couchcryptid/road-intensity-service/internal/config"
	"github.com/couchcryptid/road-intensity-service/internal/domain"
)

// ErrDeliveriesClosed is returned once the broker stops delivering, usually
// because the connection or channel was closed.
var ErrDeliveriesClosed = errors.New("amqp delivery channel closed")

// Reader consumes snapshot messages from a durable queue with manual acks.
// It implements pipeline.BatchExtractor.
type Reader struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	deliveries    <-chan amqp091.Delivery
	queue         string
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader dials the broker, declares the queue and starts consuming.
// Prefetch is capped at the batch size so unacked messages never exceed one
// batch.
func NewReader(cfg *config.Config, logger *slog.Logger) (*Reader, error) {
	conn, err := amqp091.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.AMQPQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare queue %s: %w", cfg.AMQPQueue, err)
	}

	if err := ch.Qos(cfg.BatchSize, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}

	deliveries, err := ch.Consume(cfg.AMQPQueue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp consume %s: %w", cfg.AMQPQueue, err)
	}

	logger.Info("amqp consumer started", "queue", cfg.AMQPQueue, "prefetch", cfg.BatchSize)
	r := newReader(deliveries, cfg.AMQPQueue, cfg.BatchFlushInterval, logger)
	r.conn = conn
	r.channel = ch
	return r, nil
}

func newReader(deliveries <-chan amqp091.Delivery, queue string, flushInterval time.Duration, logger *slog.Logger) *Reader {
	return &Reader{
		deliveries:    deliveries,
		queue:         queue,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// ExtractBatch blocks for the first delivery, then collects more until
// batchSize is reached or the flush interval elapses.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	var first amqp091.Delivery
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d, ok := <-r.deliveries:
		if !ok {
			return nil, ErrDeliveriesClosed
		}
		first = d
	}

	batch := make([]domain.RawEvent, 0, batchSize)
	batch = append(batch, r.mapDelivery(first))

	timer := time.NewTimer(r.flushInterval)
	defer timer.Stop()

	for len(batch) < batchSize {
		select {
		case <-ctx.Done():
			return batch, nil
		case <-timer.C:
			return batch, nil
		case d, ok := <-r.deliveries:
			if !ok {
				r.logger.Warn("amqp deliveries closed, flushing partial batch", "batch_size", len(batch))
				return batch, nil
			}
			batch = append(batch, r.mapDelivery(d))
		}
	}
	return batch, nil
}

// mapDelivery copies a delivery into the domain envelope. The delivery tag
// stands in for the offset, and committing acks the single delivery.
func (r *Reader) mapDelivery(d amqp091.Delivery) domain.RawEvent {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		switch val := v.(type) {
		case string:
			headers[k] = val
		case []byte:
			headers[k] = string(val)
		case int32:
			headers[k] = strconv.FormatInt(int64(val), 10)
		case int64:
			headers[k] = strconv.FormatInt(val, 10)
		default:
			headers[k] = fmt.Sprint(val)
		}
	}
	if d.ContentType != "" {
		headers["content_type"] = d.ContentType
	}

	key := d.MessageId
	if key == "" {
		key = d.CorrelationId
	}

	return domain.RawEvent{
		Key:       []byte(key),
		Value:     d.Body,
		Headers:   headers,
		Topic:     r.queue,
		Offset:    int64(d.DeliveryTag),
		Timestamp: d.Timestamp,
		Commit: func(_ context.Context) error {
			return d.Ack(false)
		},
	}
}

// Close stops consuming and closes the channel and connection.
func (r *Reader) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
