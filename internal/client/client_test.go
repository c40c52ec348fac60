package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngee044/realtimechat/internal/command"
	"github.com/ngee044/realtimechat/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Config{
		Dispatcher: config.Dispatcher{NormalPriorityCount: 1},
		Transport:  config.Transport{ServerIP: "127.0.0.1", ServerPort: 9999},
	}
	c, err := New(cfg, "A", "a1")
	require.NoError(t, err)
	return c
}

func TestReceiveBroadcastMessageParsesPayload(t *testing.T) {
	c := newTestClient(t)

	ok, _ := c.receiveBroadcastMessage(command.Context{
		Raw: []byte(`{"command":"send_broadcast_message","message":{"id":"A","sub_id":"a1","data":"hi"}}`),
	})
	assert.True(t, ok)
}

func TestReceiveBroadcastMessageRejectsMalformedJSON(t *testing.T) {
	c := newTestClient(t)

	ok, message := c.receiveBroadcastMessage(command.Context{Raw: []byte(`not json`)})
	assert.False(t, ok)
	assert.Equal(t, "Failed to parse message", message)
}

func TestUpdateUserClientStatusReRequestsHeartbeat(t *testing.T) {
	c := newTestClient(t)

	// sendStatusUpdate writes to a disconnected transport.Client, which
	// only logs on failure rather than panicking, so this exercises the
	// heartbeat path without a live connection.
	ok, _ := c.updateUserClientStatus(command.Context{})
	assert.True(t, ok)
}
