package broadcast

import (
	"encoding/json"
	"fmt"
)

// SlotMessage is the JSON shape the consumer writes into the broadcast
// slot and the fan-out half reads back out, per spec.md §4.6: id, sub_id,
// and message must all be strings.
type SlotMessage struct {
	ID      string `json:"id"`
	SubID   string `json:"sub_id"`
	Message string `json:"message"`
}

// ParseSlotMessage validates that raw decodes to an object carrying
// string id/sub_id/message fields. Any other shape is a consumer-side
// parse failure, acknowledged as failed per spec.md §4.6.
func ParseSlotMessage(raw []byte) (SlotMessage, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return SlotMessage{}, fmt.Errorf("failed to parse queue message: %w", err)
	}

	id, ok := obj["id"].(string)
	if !ok {
		return SlotMessage{}, fmt.Errorf("missing or non-string 'id' field")
	}
	subID, ok := obj["sub_id"].(string)
	if !ok {
		return SlotMessage{}, fmt.Errorf("missing or non-string 'sub_id' field")
	}
	message, ok := obj["message"].(string)
	if !ok {
		return SlotMessage{}, fmt.Errorf("missing or non-string 'message' field")
	}

	return SlotMessage{ID: id, SubID: subID, Message: message}, nil
}

// encodeOutgoing repackages a slot message as the send_broadcast_message
// command every connected client is expected to handle.
func encodeOutgoing(msg SlotMessage) ([]byte, error) {
	payload := map[string]interface{}{
		"command": "send_broadcast_message",
		"message": map[string]string{
			"id":     msg.ID,
			"sub_id": msg.SubID,
			"data":   msg.Message,
		},
	}
	return json.Marshal(payload)
}
