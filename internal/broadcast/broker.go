package broadcast

import (
	"crypto/tls"
	"fmt"

	"github.com/streadway/amqp"
)

// Broker wraps a single AMQP connection/channel pair, the shape
// original_source/.go_lang/Common/config/rabbitmq.go and
// .go_lang/MessageQueue/consumer/consumer.go both use.
type Broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Dial(url string) (*Broker, error) {
	return DialTLS(url, nil)
}

// DialTLS is Dial plus an optional *tls.Config, the Go stand-in for the
// source's SSLOptions passed into WorkQueueEmitter/WorkQueueConsume.
func DialTLS(url string, tlsConfig *tls.Config) (*Broker, error) {
	var conn *amqp.Connection
	var err error
	if tlsConfig != nil {
		conn, err = amqp.DialTLS(url, tlsConfig)
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Broker{conn: conn, channel: ch}, nil
}

func (b *Broker) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Publish declares queueName durable and publishes body to it.
func (b *Broker) Publish(queueName string, body []byte) error {
	if _, err := b.channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return b.channel.Publish("", queueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Consume declares queueName durable and returns a delivery channel with
// manual acknowledgement, so ConsumerLoop can Nack a malformed message
// instead of silently dropping it.
func (b *Broker) Consume(queueName string) (<-chan amqp.Delivery, error) {
	q, err := b.channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	deliveries, err := b.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %s: %w", queueName, err)
	}

	return deliveries, nil
}
