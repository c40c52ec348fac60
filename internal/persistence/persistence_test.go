package persistence

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMissingFields(t *testing.T) {
	_, result := validate([]byte(`{}`))
	assert.False(t, result.OK)
	assert.Equal(t, "Missing 'id' field", result.Message)

	_, result = validate([]byte(`{"id":"A"}`))
	assert.Equal(t, "Missing 'sub_id' field", result.Message)

	_, result = validate([]byte(`{"id":"A","sub_id":"a1"}`))
	assert.Equal(t, "Missing 'message' field", result.Message)

	_, result = validate([]byte(`{"id":"A","sub_id":"a1","message":{}}`))
	assert.Equal(t, "Missing 'content' field", result.Message)
}

func TestValidateDefaultsServerName(t *testing.T) {
	msg, result := validate([]byte(`{"id":"A","sub_id":"a1","message":{"content":"hello"}}`))
	require.True(t, result.OK)
	assert.Equal(t, defaultServerName, msg.ServerName)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "{}", msg.PublisherInfo)
}

func TestValidateKeepsExplicitServerNameAndPublisherInfo(t *testing.T) {
	raw := []byte(`{"id":"A","sub_id":"a1","publisher_information":{"region":"us"},"message":{"server_name":"Custom","content":"hi"}}`)
	msg, result := validate(raw)
	require.True(t, result.OK)
	assert.Equal(t, "Custom", msg.ServerName)
	assert.JSONEq(t, `{"region":"us"}`, msg.PublisherInfo)
}

func TestCipherRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	iv := []byte("abcdef0123456789")

	c, err := NewCipher(key, iv)
	require.NoError(t, err)

	encoded, err := c.Encrypt([]byte("secret payload"))
	require.NoError(t, err)

	_, err = base64.StdEncoding.DecodeString(encoded)
	assert.NoError(t, err, "encrypted content must be valid base64")

	decoded, err := c.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "secret payload", string(decoded))
}

func TestNewCipherRejectsBadIVLength(t *testing.T) {
	_, err := NewCipher([]byte("0123456789abcdef"), []byte("short"))
	assert.Error(t, err)
}

// fakeStore captures InsertMessage calls without touching a real
// database, so Worker.Process can be tested without sqlx/lib/pq wired up.
type fakeStore struct {
	inserted []PersistedMessage
	failNext bool
}

func (f *fakeStore) InsertMessage(msg PersistedMessage) error {
	if f.failNext {
		f.failNext = false
		return assert.AnError
	}
	f.inserted = append(f.inserted, msg)
	return nil
}

func TestWorkerProcessStoresPlaintextWhenEncryptionDisabled(t *testing.T) {
	store := &fakeStore{}
	w := &Worker{store: store, encrypt: false}

	result := w.Process([]byte(`{"id":"A","sub_id":"a1","message":{"content":"hello"}}`))
	require.True(t, result.OK)
	require.Len(t, store.inserted, 1)
	assert.False(t, store.inserted[0].IsEncrypted)
	assert.Equal(t, "hello", store.inserted[0].Content)
}

func TestWorkerProcessEncryptsWhenEnabled(t *testing.T) {
	store := &fakeStore{}
	key := []byte("0123456789abcdef")
	iv := []byte("abcdef0123456789")
	c, err := NewCipher(key, iv)
	require.NoError(t, err)

	w := &Worker{store: store, cipher: c, encrypt: true}

	result := w.Process([]byte(`{"id":"A","sub_id":"a1","message":{"content":"hello"}}`))
	require.True(t, result.OK)
	require.Len(t, store.inserted, 1)
	assert.True(t, store.inserted[0].IsEncrypted)

	decoded, err := c.Decrypt(store.inserted[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(decoded))
}

func TestWorkerProcessRejectsInvalidPayloadBeforeStoring(t *testing.T) {
	store := &fakeStore{}
	w := &Worker{store: store, encrypt: false}

	result := w.Process([]byte(`{"id":"A"}`))
	assert.False(t, result.OK)
	assert.Equal(t, "Missing 'sub_id' field", result.Message)
	assert.Empty(t, store.inserted)
}

func TestWorkerProcessReportsStoreFailure(t *testing.T) {
	store := &fakeStore{failNext: true}
	w := &Worker{store: store, encrypt: false}

	result := w.Process([]byte(`{"id":"A","sub_id":"a1","message":{"content":"hello"}}`))
	assert.False(t, result.OK)
}
