package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string]string)} }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

type fakeSender struct {
	mu  sync.Mutex
	got [][]byte
}

func (f *fakeSender) SendAll(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, raw)
	return nil
}

func TestParseSlotMessageRequiresStringFields(t *testing.T) {
	_, err := ParseSlotMessage([]byte(`{"id":"A","sub_id":"a1","message":123}`))
	assert.Error(t, err)

	_, err = ParseSlotMessage([]byte(`{"id":"A","sub_id":"a1"}`))
	assert.Error(t, err)

	msg, err := ParseSlotMessage([]byte(`{"id":"A","sub_id":"a1","message":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)
}

func TestEncodeOutgoingShape(t *testing.T) {
	raw, err := encodeOutgoing(SlotMessage{ID: "A", SubID: "a1", Message: "hi"})
	require.NoError(t, err)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &obj))
	assert.Equal(t, "send_broadcast_message", obj["command"])

	message := obj["message"].(map[string]interface{})
	assert.Equal(t, "A", message["id"])
	assert.Equal(t, "a1", message["sub_id"])
	assert.Equal(t, "hi", message["data"])
}

func TestFanoutTickSkipsEmptySlot(t *testing.T) {
	kv := newFakeKV()
	sender := &fakeSender{}
	loop := NewFanoutLoop(kv, sender, "")

	result := loop.tick()
	assert.True(t, result.OK)
	assert.Empty(t, sender.got)
}

func TestFanoutTickSendsAndClearsNonEmptySlot(t *testing.T) {
	kv := newFakeKV()
	kv.data[DefaultSlotKey] = `{"id":"A","sub_id":"a1","message":"hi"}`
	sender := &fakeSender{}
	loop := NewFanoutLoop(kv, sender, "")

	result := loop.tick()
	require.True(t, result.OK)
	require.Len(t, sender.got, 1)
	assert.Equal(t, "", kv.data[DefaultSlotKey])
}

func TestConsumerLoopWritesValidDeliveriesIntoSlot(t *testing.T) {
	kv := newFakeKV()
	loop := NewConsumerLoop(kv, "")
	assert.Equal(t, DefaultSlotKey, loop.slotKey)

	body := `{"id":"A","sub_id":"a1","message":"hi"}`
	loop.Handle(context.Background(), amqp.Delivery{Body: []byte(body)})
	assert.Equal(t, body, kv.data[DefaultSlotKey])
}
