package services

import (
	"context"
	"encoding/json"
	"fmt"

	"advising/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitNotifier publishes events to a topic exchange with the routing key
// user.<role>.<id>. A consumer started with StartConsumer forwards them to
// websocket connections, so any instance can deliver to any participant.
type RabbitNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewRabbitNotifier(url, exchange string) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	logger.Info().Str("exchange", exchange).Msg("RabbitMQ initialized")
	return &RabbitNotifier{conn: conn, channel: channel, exchange: exchange}, nil
}

func routingKey(event Event) string {
	return fmt.Sprintf("user.%s.%d", event.Role, event.UserID)
}

func (n *RabbitNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return n.channel.PublishWithContext(ctx,
		n.exchange,
		routingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// instanceQueueName gives every instance its own queue, so each one sees
// every event instead of competing for them.
func instanceQueueName(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, uuid.NewString())
}

// StartConsumer declares a queue private to this instance, binds it to every
// user routing key and pushes each event to the matching local websocket
// connections until ctx is done. The queue goes away with the connection.
func (n *RabbitNotifier) StartConsumer(ctx context.Context, queuePrefix string, conns *WSConnManager) error {
	q, err := n.channel.QueueDeclare(
		instanceQueueName(queuePrefix),
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := n.channel.QueueBind(q.Name, "user.#", n.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := n.channel.Consume(
		q.Name,
		"",
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn().Msg("RabbitMQ delivery channel closed")
					return
				}
				var event Event
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					logger.Warn().Err(err).Msg("failed to unmarshal message event")
					continue
				}
				conns.Send(event.Role, event.UserID, msg.Body)
			}
		}
	}()
	return nil
}

func (n *RabbitNotifier) Close() error {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
