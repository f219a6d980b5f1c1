package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRequestQueue = "skill-match-requests"
	DefaultResultQueue  = "skill-match-results"
)

// Config describes the broker connection and queues.
type Config struct {
	URL          string
	RequestQueue string
	ResultQueue  string
	Workers      int
	Prefetch     int
}

// Worker consumes match requests and publishes responses.
type Worker struct {
	cfg     Config
	handler *Handler
	logger  *zap.Logger
}

func NewWorker(cfg Config, handler *Handler, logger *zap.Logger) *Worker {
	if cfg.RequestQueue == "" {
		cfg.RequestQueue = DefaultRequestQueue
	}
	if cfg.ResultQueue == "" {
		cfg.ResultQueue = DefaultResultQueue
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{cfg: cfg, handler: handler, logger: logger}
}

// Run starts the consumers and blocks until ctx is cancelled or one of them
// fails.
func (w *Worker) Run(ctx context.Context) error {
	conn, err := amqp.Dial(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("error dialling rabbitmq: %w", err)
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(ctx)
	for i := range w.cfg.Workers {
		g.Go(func() error {
			return w.consume(ctx, conn, i+1)
		})
	}

	w.logger.Info("worker started",
		zap.Int("consumers", w.cfg.Workers),
		zap.String("request_queue", w.cfg.RequestQueue),
		zap.String("result_queue", w.cfg.ResultQueue),
	)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection, id int) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("error opening rabbitmq channel: %w", err)
	}
	defer ch.Close()

	for _, queue := range []string{w.cfg.RequestQueue, w.cfg.ResultQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	if err := ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := ch.Consume(w.cfg.RequestQueue, fmt.Sprintf("skillmatch-%d", id), false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error consuming rabbitmq messages: %w", err)
	}

	log := w.logger.With(zap.Int("consumer", id))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := w.deliver(ctx, ch, msg, log); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) deliver(ctx context.Context, ch *amqp.Channel, msg amqp.Delivery, log *zap.Logger) error {
	resp := w.handler.Handle(ctx, msg.Body)

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	err = ch.Publish("", w.cfg.ResultQueue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: resp.RequestID,
		Body:          body,
	})
	if err != nil {
		log.Warn("failed to publish response", zap.String("request_id", resp.RequestID), zap.Error(err))
		return msg.Nack(false, true)
	}

	log.Info("request handled", zap.String("request_id", resp.RequestID), zap.String("status", resp.Status))

	if resp.invalid {
		return msg.Reject(false)
	}
	return msg.Ack(false)
}
