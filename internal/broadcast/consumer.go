package broadcast

import (
	"context"

	"github.com/streadway/amqp"

	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/metrics"
)

// DefaultSlotKey is global_message_key from the source's Configurations.
const DefaultSlotKey = "global_message_key"

// ConsumerLoop is the consumer half of spec.md §4.6: it drains a broker
// queue and writes each valid delivery into the one-slot KV rendezvous,
// never waiting for the fan-out side to catch up. Consumer (the Queue
// Consumer process role, internal/consumerrole) drives one of these per
// connection and hooks OnAccepted to also persist the message.
type ConsumerLoop struct {
	kv      KV
	slotKey string

	// OnAccepted, if set, runs after a delivery is successfully written
	// into the slot and before it is acknowledged — the hook the Queue
	// Consumer role uses to persist the same message.
	OnAccepted func(msg SlotMessage, raw []byte)
}

func NewConsumerLoop(kv KV, slotKey string) *ConsumerLoop {
	if slotKey == "" {
		slotKey = DefaultSlotKey
	}
	return &ConsumerLoop{kv: kv, slotKey: slotKey}
}

// Run drains deliveries until the channel closes (broker shutdown). Each
// delivery is parsed and, on success, written whole into the slot; on
// failure it is Nacked without requeue and logged, per spec.md §4.6's
// "acknowledges as failed and logs".
func (c *ConsumerLoop) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for delivery := range deliveries {
		c.handle(ctx, delivery)
	}
}

// handle processes one delivery; Consumer.handle in internal/consumerrole
// reaches it through Handle so the slot-write path is shared rather than
// duplicated between the library loop and the process role.
func (c *ConsumerLoop) handle(ctx context.Context, delivery amqp.Delivery) {
	msg, err := ParseSlotMessage(delivery.Body)
	if err != nil {
		logging.Errorf("broadcast consumer: %v", err)
		_ = delivery.Nack(false, false)
		return
	}

	if prev, err := c.kv.Get(ctx, c.slotKey); err == nil && prev != "" {
		metrics.BroadcastSlotOverwrittenTotal.Inc()
	}

	if err := c.kv.Set(ctx, c.slotKey, string(delivery.Body), 0); err != nil {
		logging.Errorf("broadcast consumer: failed to write slot: %v", err)
		_ = delivery.Nack(false, false)
		return
	}

	if c.OnAccepted != nil {
		c.OnAccepted(msg, delivery.Body)
	}

	_ = delivery.Ack(false)
}

// Handle exposes handle to callers (internal/consumerrole) driving their
// own delivery channel instead of calling Run.
func (c *ConsumerLoop) Handle(ctx context.Context, delivery amqp.Delivery) {
	c.handle(ctx, delivery)
}
