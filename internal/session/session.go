// Package session implements the connected-session registry of
// spec.md §4.3: the set of currently connected (id, sub_id) pairs.
package session

import (
	"fmt"
	"sync"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/metrics"
)

// Key uniquely identifies a connected session.
type Key struct {
	ID    string
	SubID string
}

// Record is the mutable state kept per session. Status holds the last
// status-update payload a client sent via request_client_status_update;
// it is opaque JSON text from the registry's point of view.
type Record struct {
	Status        string
	LastPayload   string
}

// Registry is a plain value owned by the process role that needs it — not
// a process-wide singleton, per the open-question decision in
// SPEC_FULL.md §E. This keeps tests hermetic: each test constructs its
// own Registry.
type Registry struct {
	mu      sync.Mutex
	clients map[Key]Record
}

func New() *Registry {
	return &Registry{clients: make(map[Key]Record)}
}

// Add inserts a new session with empty status. Fails if the key is
// already present.
func (r *Registry) Add(id, subID string) apperror.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{ID: id, SubID: subID}
	if _, exists := r.clients[key]; exists {
		return apperror.Fail("Client already exists")
	}

	r.clients[key] = Record{}
	metrics.SessionsConnected.Set(float64(len(r.clients)))
	return apperror.Ok()
}

// Remove deletes a session. Fails if the key is absent.
func (r *Registry) Remove(id, subID string) apperror.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{ID: id, SubID: subID}
	if _, exists := r.clients[key]; !exists {
		return apperror.Fail("Client not exist")
	}

	delete(r.clients, key)
	metrics.SessionsConnected.Set(float64(len(r.clients)))
	return apperror.Ok()
}

// UpdateStatus records the latest status-update payload for a session.
// It is a no-op (and not an error) if the session is no longer connected,
// since a disconnect and an in-flight status update can race harmlessly.
func (r *Registry) UpdateStatus(id, subID, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{ID: id, SubID: subID}
	rec, exists := r.clients[key]
	if !exists {
		return
	}
	rec.Status = payload
	rec.LastPayload = payload
	r.clients[key] = rec
}

// Snapshot returns an immutable copy of the whole mapping. Callers
// serialize this to feed the periodic persistence job; the copy is made
// under the lock, but all other iteration happens outside of it.
func (r *Registry) Snapshot() map[Key]Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[Key]Record, len(r.clients))
	for k, v := range r.clients {
		out[k] = v
	}
	return out
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (k Key) String() string {
	return fmt.Sprintf("%s::%s", k.ID, k.SubID)
}
