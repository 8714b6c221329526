package kafka

import (
	"context"
	"log/slog"
	"sort"

	"github.com/couchcryptid/road-intensity-service/internal/config"
	"github.com/couchcryptid/road-intensity-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces styled snapshots to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes styled snapshots to the sink topic in a
// single WriteMessages call. Messages are keyed by dataset and hash-balanced
// so each dataset's time points stay ordered on one partition.
func (w *Writer) LoadBatch(ctx context.Context, snapshots []domain.StyledSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snapshots))
	for i := range snapshots {
		msg, err := serializeToMessage(snapshots[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("styled snapshots written", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StyledSnapshot into a Kafka message with
// headers in a stable order.
func serializeToMessage(s domain.StyledSnapshot) (kafkago.Message, error) {
	out, err := domain.SerializeStyledSnapshot(s)
	if err != nil {
		return kafkago.Message{}, err
	}

	keys := make([]string, 0, len(out.Headers))
	for k := range out.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(out.Headers[k])})
	}
	return kafkago.Message{
		Key:     out.Key,
		Value:   out.Value,
		Headers: headers,
	}, nil
}
