package kafka

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	xlogger "PriceCast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type partitionKey struct {
	topic     string
	partition int
}

// Consumer reads registered topics and dispatches messages to a worker pool.
// Messages of one partition are handled one at a time. Failed messages are
// retried with backoff, then written to the DLQ topic when one is configured.
// Offsets are committed after success or after the message was dead-lettered.
type Consumer struct {
	cfg       *ConsumerConfig
	logger    *xlogger.Logger
	hook      ConsumerHook
	newReader func(topic string) messageReader
	dlq       messageWriter

	handlers map[string]MessageHandler
	readers  map[string]messageReader
	msgs     chan kafka.Message

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	partMu    sync.Mutex
	partLocks map[partitionKey]*sync.Mutex
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "pricecast",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  100 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	var dlq messageWriter
	if cfg.DLQTopic != "" {
		dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}, AllowAutoTopicCreation: true}
	}
	factory := func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	return newConsumer(cfg, factory, dlq), nil
}

func newConsumer(cfg *ConsumerConfig, factory func(string) messageReader, dlq messageWriter) *Consumer {
	initConsumerMetricsOnce()
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:       cfg,
		logger:    xlogger.Nop(),
		hook:      NoopHook{},
		newReader: factory,
		dlq:       dlq,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]messageReader),
		msgs:      make(chan kafka.Message, cfg.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
		partLocks: make(map[partitionKey]*sync.Mutex),
	}
}

func (c *Consumer) SetLogger(l *xlogger.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetHook installs a lifecycle hook. Call before Start.
func (c *Consumer) SetHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a handler for its topic. Call before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.logger.Warn("kafka handler already registered", xlogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start launches one fetch loop per topic and the worker pool.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	for topic, r := range c.readers {
		c.wg.Add(1)
		go c.fetchLoop(topic, r)
	}
	c.logger.Info("kafka consumer started",
		xlogger.Int("topics", len(c.readers)),
		xlogger.Int("workers", c.cfg.WorkerCount),
		xlogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop cancels in-flight work and waits for goroutines. Uncommitted messages
// are redelivered on the next start.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.logger.Warn("kafka reader close failed", xlogger.String("topic", topic), xlogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.logger.Warn("kafka dlq writer close failed", xlogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) fetchLoop(topic string, r messageReader) {
	defer c.wg.Done()
	attempt := 0
	for {
		msg, err := r.FetchMessage(c.ctx)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			attempt++
			c.logger.Warn("kafka fetch failed", xlogger.String("topic", topic), xlogger.Error(err))
			if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
				return
			}
			continue
		}
		attempt = 0

		select {
		case c.msgs <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.msgs:
			c.process(msg)
		}
	}
}

func (c *Consumer) process(msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()

	pl := c.partitionLock(msg.Topic, msg.Partition)
	pl.Lock()
	defer pl.Unlock()

	attempts, err := c.handleWithRetry(handler, msg)
	if c.ctx.Err() != nil {
		return // shutting down, leave uncommitted
	}

	result := "ok"
	if err != nil {
		result = "failed"
		c.logger.Error("kafka message failed",
			xlogger.String("topic", msg.Topic),
			xlogger.Int("partition", msg.Partition),
			xlogger.Int64("offset", msg.Offset),
			xlogger.Int("attempts", attempts),
			xlogger.Bool("permanent", IsPermanent(err)),
			xlogger.Error(err),
		)
		if c.dlq != nil {
			result = "dlq"
			if dlqErr := c.writeDLQ(msg, err); dlqErr != nil {
				c.logger.Error("kafka dlq write failed", xlogger.String("dlq", c.cfg.DLQTopic), xlogger.Error(dlqErr))
				result = "failed"
			}
		}
	}

	if err == nil || result == "dlq" || IsPermanent(err) {
		c.commit(msg)
	}
	consumerResults.WithLabelValues(msg.Topic, result).Inc()
	consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(handler MessageHandler, msg kafka.Message) (attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()

	hctx, data, err := c.hook.BeforeHandle(c.ctx, msg.Topic, msg, msg.Value)
	if err != nil {
		return 0, Permanent(err)
	}
	for {
		attempts++
		err = handler.Handle(hctx, data)
		c.hook.AfterHandle(hctx, msg.Topic, msg, err)
		if err == nil || IsPermanent(err) || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return attempts, err
		}
	}
}

func (c *Consumer) writeDLQ(msg kafka.Message, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now(),
		Headers: append(msg.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
}

func (c *Consumer) commit(msg kafka.Message) {
	r := c.readers[msg.Topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.logger.Error("kafka commit failed", xlogger.String("topic", msg.Topic), xlogger.Int64("offset", msg.Offset), xlogger.Error(err))
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	k := partitionKey{topic, partition}
	l, ok := c.partLocks[k]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[k] = l
	}
	return l
}

// sleep waits d or until the consumer stops; it reports whether d elapsed.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 31 {
		exp = min * time.Duration(1<<uint(attempt-1))
		if exp > max || exp <= 0 {
			exp = max
		}
	}
	// up to 50% jitter
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int64N(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerResults       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pricecast_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		)
		consumerResults = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pricecast_kafka_consumer_messages_total", Help: "Handled messages by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pricecast_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
