package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngee044/realtimechat/internal/command"
	"github.com/ngee044/realtimechat/internal/config"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := config.Config{
		Dispatcher: config.Dispatcher{NormalPriorityCount: 1},
		RateLimitPerMinute: 60,
	}
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func TestRequestPublishMessageQueueFailsWithoutBroker(t *testing.T) {
	g := newTestGateway(t)

	ok, message := g.requestPublishMessageQueue(command.Context{
		ID: "A", SubID: "a1", Raw: []byte(`{"contents":{"message":"hi"}}`),
	})
	assert.False(t, ok)
	assert.Equal(t, "work_queue_emitter is null", message)
}

func TestRequestClientStatusUpdateRejectsMalformedJSON(t *testing.T) {
	g := newTestGateway(t)

	ok, message := g.requestClientStatusUpdate(command.Context{
		ID: "A", SubID: "a1", Raw: []byte(`not json`),
	})
	assert.False(t, ok)
	assert.Equal(t, "Failed to parse message", message)
}

func TestRequestClientStatusUpdateSucceedsWithoutConnectedSession(t *testing.T) {
	g := newTestGateway(t)

	// No session has connected and no transport server is listening, so
	// SendTo is a no-op per internal/transport's documented contract and
	// the handler still reports success.
	ok, _ := g.requestClientStatusUpdate(command.Context{
		ID: "A", SubID: "a1", Raw: []byte(`{"command":"request_client_status_update"}`),
	})
	assert.True(t, ok)
}
