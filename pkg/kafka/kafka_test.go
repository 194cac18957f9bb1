package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTopic is an in-process MessageWriter and MessageReader.
type memoryTopic struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	ready     chan struct{}
	next      int
	failWrite error
}

func newMemoryTopic() *memoryTopic {
	return &memoryTopic{ready: make(chan struct{}, 64)}
}

func (m *memoryTopic) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		msg.Offset = int64(len(m.messages))
		m.messages = append(m.messages, msg)
		m.ready <- struct{}{}
	}
	return nil
}

func (m *memoryTopic) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-m.ready:
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.messages[m.next]
	m.next++
	return msg, nil
}

func (m *memoryTopic) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *memoryTopic) Close() error { return nil }

type payload struct {
	Operation string `json:"operation"`
	State     string `json:"state"`
}

func TestProduceAndConsume(t *testing.T) {
	topic := newMemoryTopic()
	p := NewProducerWithWriter(topic, "ops")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Publish(ctx, Event{Key: "op1", Type: "operation.started", Value: payload{"op1", "PROCESSING"}}))
	require.NoError(t, p.PublishBatch(ctx, []Event{
		{Key: "op1", Value: payload{"op1", "SUCCESSFUL"}},
		{Key: "op2", Value: payload{"op2", "FAILED"}},
	}))
	require.NoError(t, p.PublishBatch(ctx, nil))

	var got []payload
	var types []string
	done := make(chan struct{})
	c := NewConsumerWithReader(topic, "ops", func(ctx context.Context, msg Message) error {
		v, err := DecodeJSON[payload](msg.Value)
		if err != nil {
			return err
		}
		got = append(got, v)
		types = append(types, msg.Type)
		if len(got) == 3 {
			close(done)
		}
		return nil
	})
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()
	<-done
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, []payload{{"op1", "PROCESSING"}, {"op1", "SUCCESSFUL"}, {"op2", "FAILED"}}, got)
	assert.Equal(t, []string{"operation.started", "", ""}, types)
	topic.mu.Lock()
	assert.Equal(t, []int64{0, 1, 2}, topic.committed)
	topic.mu.Unlock()
}

func TestPublishError(t *testing.T) {
	topic := newMemoryTopic()
	topic.failWrite = errors.New("broker down")
	p := NewProducerWithWriter(topic, "ops")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorContains(t, err, "broker down")

	err = p.Publish(context.Background(), Event{Key: "k", Value: func() {}})
	assert.ErrorContains(t, err, "marshaling")
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[payload]([]byte("{"))
	assert.Error(t, err)
}
