package transport

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerClientRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var connected []string
	received := make(chan string, 4)

	server := NewServer(1024,
		func(id, subID string, ok bool) {
			mu.Lock()
			defer mu.Unlock()
			if ok {
				connected = append(connected, id+"::"+subID)
			}
		},
		func(id, subID string, text, binary []byte) {
			received <- string(text)
		},
	)

	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws?id=A&sub_id=a1"

	var gotFromServer []byte
	client := NewClient(wsURL, func(text, binary []byte) {
		gotFromServer = text
	})
	go client.Run()
	defer client.Close()

	require.Eventually(t, func() bool {
		return server.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, connected, "A::a1")
	mu.Unlock()

	require.Eventually(t, func() bool {
		return client.Send([]byte(`{"command":"ping"}`), nil) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case text := <-received:
		assert.Equal(t, `{"command":"ping"}`, text)
	case <-time.After(time.Second):
		t.Fatal("server never received message")
	}

	require.NoError(t, server.SendTo("A", "a1", []byte(`{"command":"pong"}`)))

	require.Eventually(t, func() bool {
		return string(gotFromServer) == `{"command":"pong"}`
	}, time.Second, 10*time.Millisecond)
}

func TestSendAllFansOutToAllConnections(t *testing.T) {
	server := NewServer(1024, nil, nil)
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws?id=A&sub_id=a1"

	var mu sync.Mutex
	var gotFromServer []byte
	client := NewClient(wsURL, func(text, binary []byte) {
		mu.Lock()
		gotFromServer = text
		mu.Unlock()
	})
	go client.Run()
	defer client.Close()

	require.Eventually(t, func() bool {
		return server.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, server.SendAll([]byte(`{"command":"send_broadcast_message"}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return string(gotFromServer) == `{"command":"send_broadcast_message"}`
	}, time.Second, 10*time.Millisecond)
}
