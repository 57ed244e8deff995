package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type fakeReader struct {
	in        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newFakeReader() *fakeReader { return &fakeReader{in: make(chan kafka.Message, 8)} }

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.in:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type scriptedHandler struct {
	topic    string
	failures int32 // fail this many times before succeeding
	err      error
	calls    atomic.Int32
	traceIDs chan string
}

func (h *scriptedHandler) Topic() string { return h.topic }

func (h *scriptedHandler) Handle(ctx context.Context, _ []byte) error {
	n := h.calls.Add(1)
	if h.traceIDs != nil {
		h.traceIDs <- TraceIDFrom(ctx)
	}
	if n <= h.failures {
		return h.err
	}
	return nil
}

func testConsumer(reader *fakeReader, dlq messageWriter) *Consumer {
	cfg := &ConsumerConfig{
		GroupID:     "test",
		WorkerCount: 2,
		BufferSize:  4,
		RetryMax:    3,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		DLQTopic:    "train.dlq",
	}
	return newConsumer(cfg, func(string) messageReader { return reader }, dlq)
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	reader := newFakeReader()
	dlq := &fakeWriter{}
	c := testConsumer(reader, dlq)
	h := &scriptedHandler{topic: "train", failures: 2, err: errors.New("transient")}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	reader.in <- kafka.Message{Topic: "train", Offset: 7, Value: []byte(`{}`)}

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), h.calls.Load())
	assert.Equal(t, []int64{7}, reader.commits())
	assert.Empty(t, dlq.written())
}

func TestConsumerPermanentErrorGoesToDLQ(t *testing.T) {
	reader := newFakeReader()
	dlq := &fakeWriter{}
	c := testConsumer(reader, dlq)
	h := &scriptedHandler{topic: "train", failures: 100, err: Permanent(errors.New("bad payload"))}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	reader.in <- kafka.Message{Topic: "train", Offset: 3, Key: []byte("AAPL"), Value: []byte(`nope`)}

	require.Eventually(t, func() bool { return len(dlq.written()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), h.calls.Load(), "permanent errors are not retried")

	m := dlq.written()[0]
	assert.Equal(t, "train.dlq", m.Topic)
	assert.Equal(t, []byte("nope"), m.Value)
	assert.Equal(t, []byte("AAPL"), m.Key)
	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestConsumerExhaustedRetries(t *testing.T) {
	reader := newFakeReader()
	dlq := &fakeWriter{}
	c := testConsumer(reader, dlq)
	h := &scriptedHandler{topic: "train", failures: 100, err: errors.New("still down")}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	reader.in <- kafka.Message{Topic: "train", Offset: 1}

	require.Eventually(t, func() bool { return len(dlq.written()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(4), h.calls.Load())
}

func TestConsumerTraceHook(t *testing.T) {
	reader := newFakeReader()
	c := testConsumer(reader, nil)
	c.SetHook(TraceHook())
	h := &scriptedHandler{topic: "train", traceIDs: make(chan string, 1)}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	reader.in <- kafka.Message{Topic: "train", Headers: []kafka.Header{TraceHeader("abc-123")}}

	select {
	case id := <-h.traceIDs:
		assert.Equal(t, "abc-123", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestConsumerStartWithoutHandlers(t *testing.T) {
	c := testConsumer(newFakeReader(), nil)
	assert.Error(t, c.Start())
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
	_, err = NewProducer()
	assert.Error(t, err)
}

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")

	err := p.Publish(context.Background(), "events", []byte("MSFT"), map[string]any{"type": "model.trained"}, TraceHeader("id-1"))
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "events", msgs[0].Topic)
	assert.JSONEq(t, `{"type":"model.trained"}`, string(msgs[0].Value))
	assert.Equal(t, "id-1", ExtractTraceID(msgs[0]))

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), "events", nil, "raw"))
}

func TestPermanent(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}
