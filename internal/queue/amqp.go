package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/shared"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "transfer-requests"

// AMQPBroker publishes and consumes jobs on a durable RabbitMQ queue.
//
// Publishing and consuming use separate connections; each consumer gets its own channel.
type AMQPBroker struct {
	pubConn  *amqp.Connection
	subConn  *amqp.Connection
	queue    string
	prefetch int
	logger   *log.Logger

	mu    sync.Mutex
	pubCh *amqp.Channel
}

// DialAMQP connects to the broker described by cfg.
func DialAMQP(cfg shared.AMQPConfig, logger *log.Logger) (*AMQPBroker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: amqp.url", shared.ErrMissingConfig)
	}

	pubConn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: amqp: %v", shared.ErrServiceUnavailable, err)
	}
	subConn, err := amqp.Dial(cfg.URL)
	if err != nil {
		pubConn.Close()
		return nil, fmt.Errorf("%w: amqp: %v", shared.ErrServiceUnavailable, err)
	}

	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPBroker{
		pubConn:  pubConn,
		subConn:  subConn,
		queue:    queue,
		prefetch: max(cfg.Prefetch, 1),
		logger:   shared.WithLogger(logger, "queue", queue),
	}, nil
}

func (b *AMQPBroker) declare(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(b.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", b.queue, err)
	}
	return nil
}

func (b *AMQPBroker) publishChannel() (*amqp.Channel, error) {
	if b.pubCh != nil && !b.pubCh.IsClosed() {
		return b.pubCh, nil
	}
	ch, err := b.pubConn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: amqp channel: %v", shared.ErrServiceUnavailable, err)
	}
	if err := b.declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	b.pubCh = ch
	return ch, nil
}

// Publish sends job as a persistent JSON message.
func (b *AMQPBroker) Publish(ctx context.Context, job Job) error {
	body, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publishChannel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.Handle,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish job %s: %v", shared.ErrAPIRequest, job.Handle, err)
	}
	return nil
}

// Consume opens a channel with QoS prefetch and streams decoded jobs with manual acks.
// Messages that cannot be decoded are rejected without requeue.
func (b *AMQPBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	ch, err := b.subConn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: amqp channel: %v", shared.ErrServiceUnavailable, err)
	}
	if err := b.declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := ch.Consume(b.queue, "songmigrate-worker-"+shared.GenerateID(), false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume %s: %w", b.queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					b.logger.Warn("delivery channel closed")
					return
				}
				d, ok := b.delivery(msg)
				if !ok {
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *AMQPBroker) delivery(msg amqp.Delivery) (Delivery, bool) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		b.logger.Error("rejecting message", "message_id", msg.MessageId, "error", err)
		if err := msg.Reject(false); err != nil {
			b.logger.Warn("reject failed", "error", err)
		}
		return Delivery{}, false
	}
	return Delivery{
		Job:  job,
		Ack:  func() error { return msg.Ack(false) },
		Nack: func(requeue bool) error { return msg.Nack(false, requeue) },
	}, true
}

// Close closes the channels and both connections.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubCh != nil {
		b.pubCh.Close()
	}
	b.subConn.Close()
	return b.pubConn.Close()
}
