package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Kafka publishes and consumes through a Kafka cluster.
// One writer is kept per topic.
type Kafka struct {
	brokers     []string
	maxAttempts int
	log         zerolog.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafka(brokers []string, maxAttempts int, log zerolog.Logger) *Kafka {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Kafka{
		brokers:     brokers,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "kafka").Logger(),
		writers:     make(map[string]*kafka.Writer),
	}
}

func (k *Kafka) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	w, ok := k.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:                   kafka.TCP(k.brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
		k.writers[topic] = w
	}
	return w
}

// Publish writes payload to topic with the trace context injected into headers
func (k *Kafka) Publish(ctx context.Context, topic string, key, payload []byte) error {
	return k.publish(ctx, topic, kafka.Message{Key: key, Value: payload}, 1)
}

func (k *Kafka) publish(ctx context.Context, topic string, msg kafka.Message, attempt int) error {
	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: HeaderAttempt, Value: []byte(strconv.Itoa(attempt))},
		},
	}
	for _, h := range msg.Headers {
		if h.Key != HeaderAttempt {
			out.Headers = append(out.Headers, h)
		}
	}
	carrier := HeaderCarrier(out.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	out.Headers = carrier

	if err := k.writer(topic).WriteMessages(ctx, out); err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	return nil
}

// Consume fetches one message at a time, runs handler and commits the offset
// only after the message has either succeeded or been requeued.
// It blocks until ctx is cancelled.
func (k *Kafka) Consume(ctx context.Context, topic, group string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	log := k.log.With().Str("topic", topic).Str("group", group).Logger()
	log.Info().Msg("consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("consumer shutting down")
				return nil
			}
			log.Error().Err(err).Msg("fetch message failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		carrier := HeaderCarrier(msg.Headers)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)
		attempt := parseAttempt(carrier.Get(HeaderAttempt))

		herr := handler(msgCtx, Message{Topic: topic, Key: msg.Key, Value: msg.Value, Attempt: attempt})
		if herr != nil {
			if err := k.retry(msgCtx, topic, msg, attempt, herr); err != nil {
				// leave the offset uncommitted so the message is redelivered
				log.Error().Err(err).Msg("requeue failed")
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

func (k *Kafka) retry(ctx context.Context, topic string, msg kafka.Message, attempt int, cause error) error {
	msg.Headers = append(withoutHeader(msg.Headers, HeaderError),
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())})

	if attempt >= k.maxAttempts {
		k.log.Error().Err(cause).Str("topic", topic).Int("attempt", attempt).Msg("moving message to dead letter topic")
		msg.Headers = append(withoutHeader(msg.Headers, HeaderOriginalTopic),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(topic)})
		return k.publish(ctx, DeadLetterTopic(topic), msg, attempt)
	}

	k.log.Warn().Err(cause).Str("topic", topic).Int("attempt", attempt).Msg("requeueing message")
	return k.publish(ctx, topic, msg, attempt+1)
}

func withoutHeader(headers []kafka.Header, key string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers))
	for _, h := range headers {
		if h.Key != key {
			out = append(out, h)
		}
	}
	return out
}

// Close flushes and closes every writer
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstErr error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close writer for %s", topic)
		}
	}
	return firstErr
}
