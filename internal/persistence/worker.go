package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/dispatcher"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/metrics"
)

const defaultServerName = "MainServer"

// incoming is the wire shape db_worker validates before storing, per
// spec.md §4.4 and DBWorker.cpp's parse_message.
type incoming struct {
	ID                   string                 `json:"id"`
	SubID                string                 `json:"sub_id"`
	PublisherInformation map[string]interface{} `json:"publisher_information"`
	Message              *incomingBody          `json:"message"`
}

type incomingBody struct {
	ServerName string `json:"server_name"`
	Content    string `json:"content"`
}

// validate reproduces DBWorker's required-field checks in order: id,
// sub_id, message, message.content. A missing field always produces
// "Missing '<field>' field" and never reaches the store.
func validate(raw []byte) (PersistedMessage, apperror.Result) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return PersistedMessage{}, apperror.Fail("Failed to parse message")
	}

	if _, ok := obj["id"]; !ok {
		return PersistedMessage{}, apperror.Fail("Missing 'id' field")
	}
	if _, ok := obj["sub_id"]; !ok {
		return PersistedMessage{}, apperror.Fail("Missing 'sub_id' field")
	}
	if _, ok := obj["message"]; !ok {
		return PersistedMessage{}, apperror.Fail("Missing 'message' field")
	}

	var msg incoming
	if err := json.Unmarshal(raw, &msg); err != nil {
		return PersistedMessage{}, apperror.Fail("Failed to parse message")
	}

	if msg.ID == "" {
		return PersistedMessage{}, apperror.Fail("Missing 'id' field")
	}
	if msg.SubID == "" {
		return PersistedMessage{}, apperror.Fail("Missing 'sub_id' field")
	}
	if msg.Message == nil {
		return PersistedMessage{}, apperror.Fail("Missing 'message' field")
	}
	if msg.Message.Content == "" {
		return PersistedMessage{}, apperror.Fail("Missing 'content' field")
	}

	serverName := msg.Message.ServerName
	if serverName == "" {
		serverName = defaultServerName
	}

	publisherInfo := "{}"
	if msg.PublisherInformation != nil {
		if encoded, err := json.Marshal(msg.PublisherInformation); err == nil {
			publisherInfo = string(encoded)
		}
	}

	return PersistedMessage{
		ID:            msg.ID,
		SubID:         msg.SubID,
		PublisherInfo: publisherInfo,
		ServerName:    serverName,
		Content:       msg.Message.Content,
	}, apperror.Ok()
}

// messageStore is the slice of *Store a Worker actually needs, narrowed
// out so tests can substitute a fake instead of a live Postgres
// connection.
type messageStore interface {
	InsertMessage(msg PersistedMessage) error
}

// Worker implements db_worker: validate, optionally encrypt, then store.
// Job wraps it at Low priority for callers that run it on a dispatcher.
type Worker struct {
	store   messageStore
	cipher  *Cipher
	encrypt bool
}

func NewWorker(store *Store, cipher *Cipher, encrypt bool) *Worker {
	return &Worker{store: store, cipher: cipher, encrypt: encrypt}
}

// Process validates, optionally encrypts, and stores raw. It is exposed
// directly (not only as a dispatcher Job) so it can be unit tested
// without spinning up a worker pool.
func (w *Worker) Process(raw []byte) apperror.Result {
	msg, result := validate(raw)
	if !result.OK {
		return result
	}

	msg.IsEncrypted = false
	if w.encrypt && w.cipher != nil {
		encoded, err := w.cipher.Encrypt([]byte(msg.Content))
		if err != nil {
			logging.Warnf("encryption failed for message %s/%s, storing plaintext: %v", msg.ID, msg.SubID, err)
		} else {
			msg.Content = encoded
			msg.IsEncrypted = true
		}
	}

	if err := w.store.InsertMessage(msg); err != nil {
		metrics.PersistedMessagesTotal.WithLabelValues("error").Inc()
		return apperror.Fail(fmt.Sprintf("Failed to store message: %v", err))
	}

	metrics.PersistedMessagesTotal.WithLabelValues(boolLabel(msg.IsEncrypted)).Inc()
	return apperror.Ok()
}

// Job wraps Process as a dispatcher Job at Low priority. The Queue
// Consumer role (internal/consumerrole) does not use it: it calls Process
// directly on its delivery goroutine.
func (w *Worker) Job(raw []byte) *dispatcher.Job {
	return dispatcher.NewJob(dispatcher.Low, "PersistMessage", func(pool *dispatcher.PoolHandle) apperror.Result {
		return w.Process(raw)
	})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
