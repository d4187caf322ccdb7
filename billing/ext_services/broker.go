package ext_services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"encore.app/billing/models"
	"encore.dev/rlog"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of the broker connection
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Channel is the part of *amqp.Channel the broker uses
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Connection is the part of *amqp.Connection the broker uses
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// DialFunc opens a new broker connection
type DialFunc func(ctx context.Context) (Connection, error)

var errBrokerClosed = errors.New("broker is closed")

// Broker owns one lazily established connection and channel to RabbitMQ.
// State, transitions and sends are serialized by mu; connecting is single-flight.
type Broker struct {
	dial  DialFunc
	queue string

	mu     sync.Mutex
	state  State
	conn   Connection
	ch     Channel
	closed bool

	connecting singleflight.Group
}

func NewBroker(dial DialFunc, queue string) *Broker {
	log := rlog.With("module", "broker").With("queue", queue)
	log.Info("broker initialized", "state", StateDisconnected.String())

	return &Broker{dial: dial, queue: queue}
}

// AMQPDialer dials RabbitMQ with the configured address and credentials
func AMQPDialer(cfg *models.AppConfig, password string) DialFunc {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Messaging.Host(),
		Port:     cfg.Messaging.Port(),
		Username: cfg.Messaging.Username(),
		Password: password,
		Vhost:    cfg.Messaging.VHost(),
	}
	timeout := time.Duration(cfg.Messaging.DialTimeout()) * time.Second

	return func(ctx context.Context) (Connection, error) {
		conn, err := amqp.DialConfig(uri.String(), amqp.Config{
			Heartbeat:  10 * time.Second,
			Locale:     "en_US",
			Dial:       amqp.DefaultDial(timeout),
			Properties: amqp.Table{"connection_name": "billing"},
		})
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", net.JoinHostPort(uri.Host, strconv.Itoa(uri.Port)), err)
		}
		return amqpConnection{conn}, nil
	}
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	return c.Connection.Channel()
}

func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Broker) Queue() string {
	return b.queue
}

// EnsureReady connects if needed. Concurrent callers share one connection attempt;
// a caller whose context ends stops waiting but does not cancel the attempt.
func (b *Broker) EnsureReady(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errBrokerClosed
	}
	if b.state == StateReady && !b.ch.IsClosed() {
		b.mu.Unlock()
		return nil
	}
	if b.state == StateReady {
		rlog.With("module", "broker").With("queue", b.queue).Warn("channel closed by peer, reconnecting")
		b.resetLocked()
	}
	b.mu.Unlock()

	result := b.connecting.DoChan("connect", func() (any, error) {
		return nil, b.connect(context.WithoutCancel(ctx))
	})
	select {
	case res := <-result:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broker) connect(ctx context.Context) error {
	log := rlog.With("module", "broker").With("queue", b.queue)

	b.mu.Lock()
	if b.state == StateReady {
		b.mu.Unlock()
		return nil
	}
	b.state = StateConnecting
	b.mu.Unlock()
	log.Info("connecting to broker")

	conn, ch, err := b.open(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = StateDisconnected
		log.Warn("failed to connect to broker", "error", err)
		return err
	}
	if b.closed {
		_ = ch.Close()
		_ = conn.Close()
		b.state = StateDisconnected
		return errBrokerClosed
	}
	b.conn, b.ch, b.state = conn, ch, StateReady
	log.Info("broker connection ready")
	return nil
}

// open builds a connection, opens a channel and declares the durable queue
func (b *Broker) open(ctx context.Context) (Connection, Channel, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err = ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %q: %w", b.queue, err)
	}
	return conn, ch, nil
}

// Publish sends msg to the queue. A failed attempt invalidates the connection and is
// followed by exactly one reconnect and one retry; a second failure is a *models.BrokerError.
func (b *Broker) Publish(ctx context.Context, msg amqp.Publishing) error {
	log := rlog.With("module", "broker").With("queue", b.queue).With("message_id", msg.MessageId)

	err := b.attempt(ctx, msg)
	if err == nil {
		return nil
	}
	if errors.Is(err, errBrokerClosed) {
		return &models.BrokerError{Op: "publish", Err: err}
	}
	log.Warn("publish failed, reconnecting once", "error", err)

	if err = b.attempt(ctx, msg); err != nil {
		log.Error("publish retry failed", "error", err)
		return &models.BrokerError{Op: "publish", Err: err}
	}

	log.Info("publish succeeded after reconnect")
	return nil
}

func (b *Broker) attempt(ctx context.Context, msg amqp.Publishing) error {
	if err := b.EnsureReady(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return errors.New("broker connection lost before send")
	}
	if err := b.ch.PublishWithContext(ctx, "", b.queue, false, false, msg); err != nil {
		b.resetLocked()
		return err
	}
	return nil
}

// resetLocked drops the current connection. The caller holds mu.
func (b *Broker) resetLocked() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil && !b.conn.IsClosed() {
		_ = b.conn.Close()
	}
	b.conn, b.ch = nil, nil
	b.state = StateDisconnected
}

// Close releases the connection. Further publishes fail.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	var err error
	if b.ch != nil {
		err = b.ch.Close()
	}
	if b.conn != nil && !b.conn.IsClosed() {
		err = errors.Join(err, b.conn.Close())
	}
	b.conn, b.ch = nil, nil
	b.state = StateDisconnected

	rlog.With("module", "broker").With("queue", b.queue).Info("broker closed")
	return err
}
