// Package client wires the User Client role of spec.md §4.7: a
// reconnecting transport connection, a ServerMessageParsing pipeline, and
// the two handlers every user client must register.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/ngee044/realtimechat/internal/command"
	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/dispatcher"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/transport"
)

// Client owns the dispatcher, command pipeline, and transport connection
// for one user client process.
type Client struct {
	id, subID string

	dispatcher *dispatcher.Dispatcher
	registry   *command.Registry
	pipeline   *command.Pipeline
	transport  *transport.Client
}

func New(cfg config.Config, id, subID string) (*Client, error) {
	d, err := dispatcher.New(dispatcher.Config{
		HighPriorityCount:   cfg.Dispatcher.HighPriorityCount,
		NormalPriorityCount: cfg.Dispatcher.NormalPriorityCount,
		LowPriorityCount:    cfg.Dispatcher.LowPriorityCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	c := &Client{
		id:       id,
		subID:    subID,
		dispatcher: d,
		registry: command.NewRegistry(),
	}
	c.pipeline = command.NewPipeline(c.registry, d, nil)

	url := fmt.Sprintf("ws://%s:%d/ws?id=%s&sub_id=%s", cfg.Transport.ServerIP, cfg.Transport.ServerPort, id, subID)
	c.transport = transport.NewClient(url, c.onServerMessage)
	c.transport.OnConnect(c.sendStatusUpdate)

	c.registry.Register("update_user_clinet_status", c.updateUserClientStatus)
	c.registry.Register("send_broadcast_message", c.receiveBroadcastMessage)

	return c, nil
}

// Start launches the dispatcher and the reconnecting transport loop.
// Start returns immediately; the transport loop runs on its own
// goroutine for the lifetime of the process.
func (c *Client) Start() error {
	if err := c.dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	go c.transport.Run()
	return nil
}

func (c *Client) Stop() {
	c.transport.Close()
	c.dispatcher.Stop(true)
}

func (c *Client) onServerMessage(text, binary []byte) {
	if len(binary) > 0 {
		c.pipeline.EnqueueServerCombinedMessage(text, binary)
		return
	}
	c.pipeline.EnqueueServerMessage(text)
}

// sendStatusUpdate implements §4.7's connect handshake: "sends
// {id, sub_id, message:..., command:request_client_status_update}".
func (c *Client) sendStatusUpdate() {
	payload, _ := json.Marshal(map[string]string{
		"id":      c.id,
		"sub_id":  c.subID,
		"message": "received connection from Server",
		"command": "request_client_status_update",
	})
	if err := c.transport.Send(payload, nil); err != nil {
		logging.Errorf("failed to send status update: %v", err)
	}
}

// updateUserClientStatus is the heartbeat handler: log, then re-send the
// status update request, per §4.7.
func (c *Client) updateUserClientStatus(ctx command.Context) (bool, string) {
	logging.Infof("server acknowledged status update for [%s,%s]", c.id, c.subID)
	c.sendStatusUpdate()
	return true, ""
}

// receiveBroadcastMessage presents a fanned-out broadcast to the user.
func (c *Client) receiveBroadcastMessage(ctx command.Context) (bool, string) {
	var obj struct {
		Message struct {
			ID    string `json:"id"`
			SubID string `json:"sub_id"`
			Data  string `json:"data"`
		} `json:"message"`
	}
	if err := json.Unmarshal(ctx.Raw, &obj); err != nil {
		return false, "Failed to parse message"
	}

	logging.Infof("broadcast from [%s,%s]: %s", obj.Message.ID, obj.Message.SubID, obj.Message.Data)
	return true, ""
}
