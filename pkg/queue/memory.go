package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Memory is an in-process queue with the same retry and dead-letter behaviour as Kafka.
// Topics are unbounded; a single message is handed to one consumer at a time.
type Memory struct {
	maxAttempts int
	log         zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	topics map[string][]Message
	closed bool
}

func NewMemory(maxAttempts int, log zerolog.Logger) *Memory {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	m := &Memory{
		maxAttempts: maxAttempts,
		log:         log,
		topics:      make(map[string][]Message),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Memory) Publish(_ context.Context, topic string, key, payload []byte) error {
	m.push(Message{Topic: topic, Key: key, Value: payload, Attempt: 1})
	return nil
}

func (m *Memory) push(msg Message) {
	m.mu.Lock()
	m.topics[msg.Topic] = append(m.topics[msg.Topic], msg)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Pending returns a copy of the messages waiting on topic
func (m *Memory) Pending(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.topics[topic]...)
}

// next blocks until a message is available on topic or the queue is stopped
func (m *Memory) next(ctx context.Context, topic string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.topics[topic]) == 0 {
		if m.closed || ctx.Err() != nil {
			return Message{}, false
		}
		m.cond.Wait()
	}
	msg := m.topics[topic][0]
	m.topics[topic] = m.topics[topic][1:]
	return msg, true
}

// Consume delivers messages until ctx is cancelled. The group is ignored.
func (m *Memory) Consume(ctx context.Context, topic, _ string, handler Handler) error {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	for {
		msg, ok := m.next(ctx, topic)
		if !ok {
			return nil
		}
		if err := handler(ctx, msg); err != nil {
			if msg.Attempt >= m.maxAttempts {
				m.log.Error().Err(err).Str("topic", topic).Int("attempt", msg.Attempt).Msg("moving message to dead letter topic")
				msg.Topic = DeadLetterTopic(topic)
			} else {
				m.log.Warn().Err(err).Str("topic", topic).Int("attempt", msg.Attempt).Msg("requeueing message")
				msg.Attempt++
			}
			m.push(msg)
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}
