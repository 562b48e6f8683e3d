package messaging

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"foodcourt/internal/config"
	"foodcourt/internal/logger"
)

const (
	// OrdersExchange carries order lifecycle events, routed by
	// keys of the form orders.<event>.
	OrdersExchange = "orders_topic"
	// NotificationsExchange fans order updates out to every
	// notification consumer.
	NotificationsExchange = "notifications_fanout"

	notificationsQueue = "notifications_queue"
)

// Connection wraps a RabbitMQ connection with reconnection logic
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New creates a new RabbitMQ connection and declares the topology.
func New(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect establishes the connection with retry logic.
func (c *Connection) connect() error {
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", setupErr, nil)
					c.close()
					err = setupErr
				} else {
					return nil
				}
			} else {
				c.conn.Close()
			}
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// setupTopology declares the exchanges and queues this service publishes to.
func (c *Connection) setupTopology() error {
	err := c.channel.ExchangeDeclare(
		OrdersExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", OrdersExchange, err)
	}

	err = c.channel.ExchangeDeclare(
		NotificationsExchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", NotificationsExchange, err)
	}

	_, err = c.channel.QueueDeclare(
		notificationsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare notifications queue: %w", err)
	}

	err = c.channel.QueueBind(
		notificationsQueue,
		"", // routing key ignored for fanout
		NotificationsExchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind notifications queue: %w", err)
	}

	return nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect attempts to reconnect to RabbitMQ
func (c *Connection) Reconnect() error {
	c.close()
	return c.connect()
}
