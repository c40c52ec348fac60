// Package consumerrole wires the Queue Consumer process of spec.md §4.6's
// consumer half: drain a broker queue, write each valid message into the
// broadcast slot, and durably persist it via the PersistenceWorker of
// §4.4 — the consumer is the one process that actually holds the
// consumed message in hand.
package consumerrole

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/ngee044/realtimechat/internal/broadcast"
	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/persistence"
)

// Consumer owns the broker connection, the KV slot client, and the
// persistence store for the Queue Consumer role.
type Consumer struct {
	cfg config.Config

	broker *broadcast.Broker
	kv     *broadcast.RedisKV
	loop   *broadcast.ConsumerLoop
	store  *persistence.Store
	worker *persistence.Worker
}

func New(cfg config.Config) (*Consumer, error) {
	c := &Consumer{cfg: cfg}

	brokerTLS, err := cfg.Broker.TLS.ToTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build broker tls config: %w", err)
	}
	broker, err := broadcast.DialTLS(cfg.Broker.URL, brokerTLS)
	if err != nil {
		return nil, fmt.Errorf("failed to connect broker: %w", err)
	}
	c.broker = broker

	if cfg.Redis.UseRedis {
		redisTLS, err := cfg.Redis.TLS.ToTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build redis tls config: %w", err)
		}
		c.kv = broadcast.NewRedisKVWithTLS(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port), cfg.Redis.Password, cfg.Redis.DBGlobalMessageIndex, redisTLS)
		if err := c.kv.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		c.loop = broadcast.NewConsumerLoop(c.kv, broadcast.DefaultSlotKey)
		c.loop.OnAccepted = c.persist
	}

	if cfg.Database.Host != "" {
		store, err := persistence.NewStore(persistence.Config{
			Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
			Password: cfg.Database.Password, DBName: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns, MaxIdleConns: cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		c.store = store

		var cipher *persistence.Cipher
		if cfg.Encryption.Enabled {
			key, err := decodeHexOrBase64(cfg.Encryption.KeyHex)
			if err != nil {
				return nil, fmt.Errorf("bad encryption key: %w", err)
			}
			iv, err := decodeHexOrBase64(cfg.Encryption.IVHex)
			if err != nil {
				return nil, fmt.Errorf("bad encryption iv: %w", err)
			}
			cipher, err = persistence.NewCipher(key, iv)
			if err != nil {
				return nil, fmt.Errorf("failed to build cipher: %w", err)
			}
		}
		c.worker = persistence.NewWorker(store, cipher, cfg.Encryption.Enabled)
	}

	return c, nil
}

// Run consumes cfg.Broker.ConsumeQueue until the broker closes the
// delivery channel. It blocks; callers run it on its own goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.broker.Consume(c.cfg.Broker.ConsumeQueue)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logging.Infof("consumer waiting for messages on %s", c.cfg.Broker.ConsumeQueue)

	for delivery := range deliveries {
		c.handle(ctx, delivery)
	}
	return nil
}

// handle routes a delivery through broadcast.ConsumerLoop when the slot is
// enabled, so the parse/slot-write/ack steps live in one place instead of
// being duplicated here. With no KV configured there is no slot to write,
// so this persists directly.
func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	if c.loop != nil {
		c.loop.Handle(ctx, delivery)
		return
	}

	msg, err := broadcast.ParseSlotMessage(delivery.Body)
	if err != nil {
		logging.Errorf("consumer: %v", err)
		_ = delivery.Nack(false, false)
		return
	}
	c.persist(msg, delivery.Body)
	_ = delivery.Ack(false)
}

// persist is broadcast.ConsumerLoop's OnAccepted hook: it re-shapes the
// slot message into the PersistenceWorker's expected envelope and runs it
// through validation/encryption/storage.
func (c *Consumer) persist(msg broadcast.SlotMessage, raw []byte) {
	if c.worker == nil {
		return
	}

	persistRaw, err := json.Marshal(map[string]interface{}{
		"id":     msg.ID,
		"sub_id": msg.SubID,
		"message": map[string]string{
			"content": msg.Message,
		},
	})
	if err != nil {
		logging.Errorf("consumer: failed to build persistence payload: %v", err)
		return
	}
	if result := c.worker.Process(persistRaw); !result.OK {
		logging.Errorf("consumer: failed to persist message: %s", result.Message)
	}
}

func (c *Consumer) Close() {
	if c.broker != nil {
		c.broker.Close()
	}
	if c.kv != nil {
		c.kv.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}
