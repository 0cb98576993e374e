// Package queue is the durable work queue used for background code generation.
// Messages are acknowledged only after their handler returns. A failed message
// is requeued with an incremented attempt counter and moved to a dead-letter
// topic once it exceeds the configured maximum.
package queue

import (
	"context"
	"strconv"
)

const (
	HeaderAttempt       = "x-attempt"
	HeaderError         = "x-error"
	HeaderOriginalTopic = "x-original-topic"

	deadLetterSuffix = ".dlt"
)

// Message is one unit of queued work
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Attempt int
}

// Handler processes a message. A nil return acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Publisher enqueues payloads onto a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, key, payload []byte) error
}

// Consumer delivers messages from a topic to a handler until ctx is cancelled
type Consumer interface {
	Consume(ctx context.Context, topic, group string, handler Handler) error
}

// DeadLetterTopic names the topic that receives messages which exhausted their attempts
func DeadLetterTopic(topic string) string {
	return topic + deadLetterSuffix
}

func parseAttempt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
