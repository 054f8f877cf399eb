package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/metrics"
	"github.com/Checker-Finance/bondvault/internal/vault"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// SetQuoteCommand reprices a product. Emitted by the pricing desk.
type SetQuoteCommand struct {
	ProductID uint64          `json:"product_id"`
	Amount    decimal.Decimal `json:"amount"`
	Admin     model.Account   `json:"admin"`
}

// SetStoppedCommand halts or resumes deposits for a product.
type SetStoppedCommand struct {
	ProductID uint64        `json:"product_id"`
	Stopped   bool          `json:"stopped"`
	Admin     model.Account `json:"admin"`
}

// AdminService is the slice of the vault the consumer drives.
type AdminService interface {
	SetQuote(caller model.Account, id uint64, amount decimal.Decimal) error
	SetContractStopped(caller model.Account, id uint64, stopped bool) error
}

// Consumer consumes admin commands from RabbitMQ
type Consumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	service    AdminService
	quoteQueue string
	haltQueue  string
	logger     *zap.Logger
	done       chan struct{}
}

// NewConsumer creates a new RabbitMQ consumer
func NewConsumer(url, quoteQueue string, service AdminService, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:       conn,
		channel:    channel,
		service:    service,
		quoteQueue: quoteQueue,
		haltQueue:  quoteQueue + ".halt",
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

// Start starts consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.quoteQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.quoteQueue, err)
	}

	if _, err := c.channel.QueueDeclare(c.haltQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.haltQueue, err)
	}

	quoteMsgs, err := c.channel.Consume(c.quoteQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.quoteQueue, err)
	}

	haltMsgs, err := c.channel.Consume(c.haltQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.haltQueue, err)
	}

	c.logger.Info("Started consuming from RabbitMQ",
		zap.String("quoteQueue", c.quoteQueue),
		zap.String("haltQueue", c.haltQueue),
	)

	go c.consumeQuotes(ctx, quoteMsgs)
	go c.consumeHalts(ctx, haltMsgs)

	return nil
}

func (c *Consumer) consumeQuotes(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Quote command channel closed")
				return
			}

			c.logger.Debug("Received quote command", zap.String("body", string(msg.Body)))

			accepted, requeue := c.handleQuote(msg.Body)
			c.settle(msg, c.quoteQueue, accepted, requeue)
		}
	}
}

func (c *Consumer) consumeHalts(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Halt command channel closed")
				return
			}

			c.logger.Debug("Received halt command", zap.String("body", string(msg.Body)))

			accepted, requeue := c.handleHalt(msg.Body)
			c.settle(msg, c.haltQueue, accepted, requeue)
		}
	}
}

// handleQuote applies a SetQuoteCommand. It reports whether the message was
// accepted and, if not, whether redelivery could ever succeed.
func (c *Consumer) handleQuote(body []byte) (accepted, requeue bool) {
	var cmd SetQuoteCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		c.logger.Error("Failed to unmarshal SetQuoteCommand", zap.Error(err))
		return false, false
	}

	if err := c.service.SetQuote(cmd.Admin, cmd.ProductID, cmd.Amount); err != nil {
		c.logger.Error("Failed to set quote",
			zap.Uint64("product_id", cmd.ProductID),
			zap.Error(err))
		return false, !permanent(err)
	}
	return true, false
}

func (c *Consumer) handleHalt(body []byte) (accepted, requeue bool) {
	var cmd SetStoppedCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		c.logger.Error("Failed to unmarshal SetStoppedCommand", zap.Error(err))
		return false, false
	}

	if err := c.service.SetContractStopped(cmd.Admin, cmd.ProductID, cmd.Stopped); err != nil {
		c.logger.Error("Failed to set stopped flag",
			zap.Uint64("product_id", cmd.ProductID),
			zap.Error(err))
		return false, !permanent(err)
	}
	return true, false
}

func (c *Consumer) settle(msg amqp.Delivery, queue string, accepted, requeue bool) {
	if accepted {
		msg.Ack(false)
		metrics.IncAMQPMessage(queue, "ok")
		return
	}
	msg.Nack(false, requeue)
	if requeue {
		metrics.IncAMQPMessage(queue, "error")
	} else {
		metrics.IncAMQPMessage(queue, "rejected")
	}
}

// permanent reports whether a vault rejection can never succeed on redelivery.
// A live quote window expires, so those commands are worth requeueing.
func permanent(err error) bool {
	return errors.Is(err, vault.ErrNotAdmin) ||
		errors.Is(err, vault.ErrProductNotFound) ||
		errors.Is(err, vault.ErrInvalidQuote)
}

// Close closes the consumer
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
