package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fleet/internal/config"
	"fleet/internal/service"
)

const reconnectDelay = 3 * time.Second

// ErrNotConnected is returned by Publish while the connection is being re-established.
var ErrNotConnected = errors.New("broker not connected")

// Rabbit owns the AMQP connection. It consumes dispatch signals from the
// signal queue and publishes trip and document events to the topic exchange.
type Rabbit struct {
	cfg      config.BrokerConfig
	logger   *slog.Logger
	signals  *SignalHandler
	isClosed atomic.Bool

	requeueDelay time.Duration

	mu        sync.RWMutex
	conn      *amqp091.Connection
	connClose chan *amqp091.Error
	pubCh     *amqp091.Channel
}

// NewRabbit dials the broker, declares the topology and starts consuming.
// signals may be nil, in which case nothing is consumed.
func NewRabbit(cfg config.BrokerConfig, signals *SignalHandler, logger *slog.Logger) (*Rabbit, error) {
	r := &Rabbit{
		cfg:          cfg,
		logger:       logger,
		signals:      signals,
		requeueDelay: cfg.RequeueDelay,
	}

	if err := r.connect(); err != nil {
		return nil, err
	}

	go r.reconnectConn()
	return r, nil
}

// Close stops reconnecting and closes the connection.
func (r *Rabbit) Close() error {
	r.isClosed.Store(true)
	defer r.logger.Info("rabbit closed")

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn.Close()
}

func (r *Rabbit) reconnectConn() {
	for {
		r.mu.RLock()
		closed := r.connClose
		r.mu.RUnlock()

		<-closed
		if r.isClosed.Load() {
			return
		}
		r.logger.Warn("rabbitmq connection lost")
		for {
			if r.isClosed.Load() {
				return
			}
			r.logger.Info("trying to connect to rabbitmq")
			if err := r.connect(); err != nil {
				r.logger.Warn("rabbitmq connect failed", "error", err)
				time.Sleep(reconnectDelay)
				continue
			}
			r.logger.Info("connected to rabbitmq")
			break
		}
	}
}

func (r *Rabbit) connect() error {
	conn, err := amqp091.Dial(r.cfg.URL)
	if err != nil {
		return err
	}

	pubCh, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	err = pubCh.ExchangeDeclare(
		r.cfg.EventExchange, // name
		"topic",             // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // args
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	if r.signals != nil {
		if err := r.consumeSignals(conn); err != nil {
			return errors.Join(conn.Close(), err)
		}
	}

	connClose := make(chan *amqp091.Error, 1)
	conn.NotifyClose(connClose)

	r.mu.Lock()
	r.conn = conn
	r.connClose = connClose
	r.pubCh = pubCh
	r.mu.Unlock()
	return nil
}

func (r *Rabbit) consumeSignals(conn *amqp091.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(r.cfg.SignalQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			r.deliver(msg)
		}
	}()
	return nil
}

func (r *Rabbit) deliver(msg amqp091.Delivery) {
	ctx := context.Background()
	switch r.signals.Handle(ctx, msg.Body) {
	case OutcomeAck:
		_ = msg.Ack(false)
	case OutcomeRequeue:
		// Requeued deliveries are held for requeueDelay first.
		time.AfterFunc(r.requeueDelay, func() {
			if err := msg.Nack(false, true); err != nil {
				r.logger.Warn("failed to requeue dispatch signal", "error", err)
			}
		})
	default:
		_ = msg.Nack(false, false)
	}
}

// Publish sends a notification to the event exchange, routed by its type.
func (r *Rabbit) Publish(ctx context.Context, n service.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	r.mu.RLock()
	ch := r.pubCh
	r.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	return ch.PublishWithContext(ctx,
		r.cfg.EventExchange,
		string(n.Type),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    n.ID,
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	)
}

var _ service.Publisher = (*Rabbit)(nil)
