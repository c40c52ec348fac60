// Package gateway wires the Gateway Server role of spec.md §4.5: a
// dispatcher, a session registry, a command pipeline, a transport
// server, the broadcast fan-out half, and the persistence path, all
// built from one config.Config.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/broadcast"
	"github.com/ngee044/realtimechat/internal/command"
	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/dispatcher"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/persistence"
	"github.com/ngee044/realtimechat/internal/ratelimit"
	"github.com/ngee044/realtimechat/internal/session"
	"github.com/ngee044/realtimechat/internal/transport"
)

const registerKey = "MainServer"

// Gateway owns every long-lived component of the Gateway Server process.
type Gateway struct {
	cfg config.Config

	dispatcher *dispatcher.Dispatcher
	sessions   *session.Registry
	registry   *command.Registry
	pipeline   *command.Pipeline
	server     *transport.Server
	limiter    *ratelimit.Limiter

	kv     *broadcast.RedisKV
	broker *broadcast.Broker
	fanout *broadcast.FanoutLoop

	store *persistence.Store
}

// New builds every component but does not start anything.
func New(cfg config.Config) (*Gateway, error) {
	d, err := dispatcher.New(dispatcher.Config{
		HighPriorityCount:   cfg.Dispatcher.HighPriorityCount,
		NormalPriorityCount: cfg.Dispatcher.NormalPriorityCount,
		LowPriorityCount:    cfg.Dispatcher.LowPriorityCount,
		LongTermCount:       cfg.Dispatcher.LongTermCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	g := &Gateway{
		cfg:      cfg,
		dispatcher: d,
		sessions: session.New(),
		registry: command.NewRegistry(),
		limiter:  ratelimit.New(cfg.RateLimitPerMinute),
	}

	g.server = transport.NewServer(cfg.Transport.BufferSize, g.onConnection, g.onMessage)
	g.pipeline = command.NewPipeline(g.registry, d, nil)

	g.registry.Register("request_client_status_update", g.requestClientStatusUpdate)
	g.registry.Register("request_publish_message_queue", g.requestPublishMessageQueue)

	return g, nil
}

// Start brings up, in order: the dispatcher, the optional KV connection
// (pre-clearing the broadcast slot), the broker publisher, the transport
// server, the fan-out ticker, and the session-snapshot ticker —
// mirroring MainServer::start's sequencing.
func (g *Gateway) Start() error {
	if err := g.dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	if g.cfg.Redis.UseRedis {
		redisTLS, err := g.cfg.Redis.TLS.ToTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to build redis tls config: %w", err)
		}
		g.kv = broadcast.NewRedisKVWithTLS(fmt.Sprintf("%s:%d", g.cfg.Redis.Host, g.cfg.Redis.Port), g.cfg.Redis.Password, g.cfg.Redis.DBGlobalMessageIndex, redisTLS)
		if err := g.kv.Ping(context.Background()); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		if err := g.kv.Set(context.Background(), broadcast.DefaultSlotKey, "", 0); err != nil {
			return fmt.Errorf("failed to pre-clear broadcast slot: %w", err)
		}

		g.fanout = broadcast.NewFanoutLoop(g.kv, g.server, broadcast.DefaultSlotKey)
	}

	if g.cfg.Broker.URL != "" {
		brokerTLS, err := g.cfg.Broker.TLS.ToTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to build broker tls config: %w", err)
		}
		broker, err := broadcast.DialTLS(g.cfg.Broker.URL, brokerTLS)
		if err != nil {
			return fmt.Errorf("failed to connect broker: %w", err)
		}
		g.broker = broker
	}

	// The persistence store here backs only db_periodic_update_job's
	// session snapshot (§D.1); the per-message PersistenceWorker lives in
	// the Queue Consumer role (internal/consumerrole), which is the
	// process that actually has the consumed message in hand.
	if g.cfg.Database.Host != "" {
		store, err := persistence.NewStore(persistence.Config{
			Host: g.cfg.Database.Host, Port: g.cfg.Database.Port, User: g.cfg.Database.User,
			Password: g.cfg.Database.Password, DBName: g.cfg.Database.Name, SSLMode: g.cfg.Database.SSLMode,
			MaxOpenConns: g.cfg.Database.MaxOpenConns, MaxIdleConns: g.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: g.cfg.Database.ConnMaxLifetime(),
		})
		if err != nil {
			logging.Warnf("persistence store unavailable, continuing without it: %v", err)
		} else {
			if err := store.InitSchema(); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
			g.store = store
		}
	}

	addr := fmt.Sprintf("%s:%d", g.cfg.Transport.ServerIP, g.cfg.Transport.ServerPort)
	if err := g.server.Start(addr); err != nil {
		return fmt.Errorf("failed to start transport server: %w", err)
	}

	if g.fanout != nil {
		g.fanout.Start(g.dispatcher)
	}

	g.startSessionSnapshotTicker()

	logging.Infof("gateway started as %s on %s", registerKey, addr)
	return nil
}

func (g *Gateway) Stop(drain bool) {
	if g.server != nil {
		g.server.Stop()
	}
	if g.broker != nil {
		g.broker.Close()
	}
	if g.kv != nil {
		g.kv.Close()
	}
	if g.store != nil {
		g.store.Close()
	}
	g.dispatcher.Stop(drain)
}

func (g *Gateway) onConnection(id, subID string, connected bool) {
	key := id + "::" + subID
	if connected {
		logging.Infof("Received connection[%s, %s]: connected", id, subID)
		g.sessions.Add(id, subID)
		return
	}

	logging.Infof("Received connection[%s, %s]: disconnected", id, subID)
	g.sessions.Remove(id, subID)
	g.limiter.Forget(key)
}

func (g *Gateway) onMessage(id, subID string, text, binary []byte) {
	if len(binary) > 0 {
		g.pipeline.EnqueueClientCombinedMessage(id, subID, text, binary)
		return
	}
	g.pipeline.EnqueueClientMessage(id, subID, text)
}

// requestClientStatusUpdate implements §4.5: write the raw status update
// into the KV store keyed by id::sub_id with TTL redis_ttl_sec, then
// acknowledge with update_user_clinet_status.
func (g *Gateway) requestClientStatusUpdate(ctx command.Context) (bool, string) {
	var obj map[string]interface{}
	if err := json.Unmarshal(ctx.Raw, &obj); err != nil {
		return false, "Failed to parse message"
	}

	g.sessions.UpdateStatus(ctx.ID, ctx.SubID, string(ctx.Raw))

	if g.kv != nil {
		key := ctx.ID + "::" + ctx.SubID
		if err := g.kv.Set(context.Background(), key, string(ctx.Raw), g.cfg.Redis.TTL()); err != nil {
			logging.Errorf("failed to write status to kv: %v", err)
		}
	}

	reply, _ := json.Marshal(map[string]string{
		"message": "received connection from Server",
		"command": "update_user_clinet_status",
	})
	if err := g.server.SendTo(ctx.ID, ctx.SubID, reply); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// requestPublishMessageQueue implements §4.5: validate contents.message,
// enrich with (id, sub_id, timestamp_ms), publish to the broker, and
// acknowledge with response_publish_message_queue.
func (g *Gateway) requestPublishMessageQueue(ctx command.Context) (bool, string) {
	if g.broker == nil {
		return false, "work_queue_emitter is null"
	}

	if !g.limiter.Allow(ctx.ID + "::" + ctx.SubID) {
		return false, "rate limit exceeded"
	}

	var obj struct {
		Contents struct {
			Message string `json:"message"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(ctx.Raw, &obj); err != nil {
		return false, "Failed to parse message"
	}
	if obj.Contents.Message == "" {
		return false, "Contents does not contain valid 'message' field"
	}

	queueMessage, _ := json.Marshal(map[string]interface{}{
		"client_id":     ctx.ID,
		"client_sub_id": ctx.SubID,
		"message":       obj.Contents.Message,
		"timestamp":     time.Now().UnixMilli(),
	})

	if err := g.broker.Publish(g.cfg.Broker.QueueName, queueMessage); err != nil {
		return false, fmt.Sprintf("Failed to publish to queue: %v", err)
	}

	reply, _ := json.Marshal(map[string]string{
		"command": "response_publish_message_queue",
		"result":  "success",
	})
	if err := g.server.SendTo(ctx.ID, ctx.SubID, reply); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// startSessionSnapshotTicker implements SPEC_FULL.md §D.1:
// db_periodic_update_job, self-rescheduling at Low priority every
// write_interval, exporting the session registry snapshot.
func (g *Gateway) startSessionSnapshotTicker() {
	interval := time.Duration(g.cfg.Logging.WriteInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	g.dispatcher.Ticker(dispatcher.Low, "db_periodic_update_job", interval, func() apperror.Result {
		if g.store == nil {
			return apperror.Ok()
		}
		snapshot := g.sessions.Snapshot()
		if err := g.store.UpsertSessionStatuses(snapshot); err != nil {
			logging.Errorf("db_periodic_update_job: %v", err)
			return apperror.FailErr(err)
		}
		return apperror.Ok()
	})
}
