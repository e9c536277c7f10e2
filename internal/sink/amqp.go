package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPOutput publishes to a topic exchange with the topic as routing key.
type AMQPOutput struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

func NewAMQPOutput(uri, exchange string) (*AMQPOutput, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare an exchange: %w", err)
	}
	return &AMQPOutput{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQPOutput) WriteMessage(_ context.Context, topic string, msg []byte) error {
	return a.ch.Publish(
		a.exchange, // exchange
		topic,      // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        msg,
		},
	)
}

func (a *AMQPOutput) Close() error {
	err := a.ch.Close()
	if a.conn != nil {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
