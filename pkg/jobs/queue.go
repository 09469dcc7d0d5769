// Package jobs is a small in-process job queue on top of a watermill go channel.
// Handlers are registered by name; one-shot jobs carry a JSON payload and
// recurring jobs are re-enqueued on a ticker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	topicPrefix = "jobs."
	moduleName  = "JOBS"
)

// HandlerFunc processes one job. Returned errors are logged, the job is not retried.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// TypedHandler decodes the payload into T before calling fn.
func TypedHandler[T any](fn func(ctx context.Context, payload T) error) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
		}
		return fn(ctx, t)
	}
}

// Enqueuer is the narrow interface services depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload interface{}) error
}

type Queue struct {
	pubSub    *gochannel.GoChannel
	logger    logger.ILogger
	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	recurring map[string]time.Duration
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewQueue(log logger.ILogger) *Queue {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 128},
		watermill.NewStdLogger(false, false),
	)
	return &Queue{
		pubSub:    pubSub,
		logger:    log,
		handlers:  make(map[string]HandlerFunc),
		recurring: make(map[string]time.Duration),
	}
}

// Handle registers the handler for a job name. Must be called before Start.
func (q *Queue) Handle(name string, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = fn
}

// Every schedules name to be enqueued with an empty payload at each interval.
func (q *Queue) Every(name string, interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recurring[name] = interval
}

// Enqueue publishes a one-shot job. It never waits for the handler.
func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", name, err)
		}
		body = b
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("job", name)
	msg.SetContext(context.WithoutCancel(ctx))

	return q.pubSub.Publish(topicPrefix+name, msg)
}

// Start subscribes every registered handler and starts the recurring tickers.
// Everything stops when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("job queue already started")
	}

	for name := range q.recurring {
		if _, ok := q.handlers[name]; !ok {
			return fmt.Errorf("recurring job %s has no handler", name)
		}
	}

	ctx, q.cancel = context.WithCancel(ctx)

	for name, fn := range q.handlers {
		messages, err := q.pubSub.Subscribe(ctx, topicPrefix+name)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
		q.wg.Add(1)
		go q.consume(ctx, name, fn, messages)
	}

	for name, interval := range q.recurring {
		q.wg.Add(1)
		go q.tick(ctx, name, interval)
	}

	q.started = true
	return nil
}

func (q *Queue) consume(ctx context.Context, name string, fn HandlerFunc, messages <-chan *message.Message) {
	defer q.wg.Done()
	for msg := range messages {
		q.process(ctx, name, fn, msg)
	}
}

func (q *Queue) process(ctx context.Context, name string, fn HandlerFunc, msg *message.Message) {
	// gochannel redelivers until acked, and failed jobs are not retried
	defer msg.Ack()

	defer func() {
		if r := recover(); r != nil {
			metrics.JobRuns.WithLabelValues(name, "panic").Inc()
			q.logger.Error(moduleName, "Job panicked", map[string]interface{}{"job": name, "panic": fmt.Sprint(r)})
		}
	}()

	jobCtx := msg.Context()
	if jobCtx == nil {
		jobCtx = ctx
	}

	start := time.Now()
	if err := fn(jobCtx, json.RawMessage(msg.Payload)); err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		q.logger.Error(moduleName, "Job failed", map[string]interface{}{
			"job":   name,
			"id":    msg.UUID,
			"error": err.Error(),
		})
		return
	}

	metrics.JobRuns.WithLabelValues(name, "success").Inc()
	q.logger.Debug(moduleName, "Job done", map[string]interface{}{
		"job":         name,
		"id":          msg.UUID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (q *Queue) tick(ctx context.Context, name string, interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.Enqueue(ctx, name, nil); err != nil {
				q.logger.Warn(moduleName, "Failed to enqueue recurring job", map[string]interface{}{"job": name, "error": err.Error()})
			}
		}
	}
}

// Close stops delivery and waits for running handlers.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	err := q.pubSub.Close()
	q.wg.Wait()
	return err
}
