package core

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// PresenceNotifier receives the registry contents after every membership change.
// It is called with the registry lock held and must only enqueue.
type PresenceNotifier interface {
	PresenceChanged(online []string, handles []Handle)
}

// Registry maps a user id to that user's single live handle.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]Handle
	notifier PresenceNotifier
	logger   *zerolog.Logger
}

// NewRegistry creates an empty registry. notifier may be nil.
func NewRegistry(notifier PresenceNotifier, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		entries:  make(map[string]Handle),
		notifier: notifier,
		logger:   logger,
	}
}

// Register stores h as the live handle for userID. A different handle already
// stored for userID is closed with CloseSuperseded before h replaces it.
func (r *Registry) Register(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[userID]; ok && old != h {
		old.Close(CloseSuperseded)
		r.logger.Info().Str("user_id", userID).Msg("previous session superseded")
	}
	r.entries[userID] = h
	r.notifyLocked()
}

// Unregister removes the entry for userID only if it is h. Reports whether the
// entry was removed.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries[userID]
	if !ok || cur != h {
		return false
	}
	delete(r.entries, userID)
	r.notifyLocked()
	return true
}

// Lookup returns the live handle for userID.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[userID]
	return h, ok
}

// Snapshot returns the connected user ids in sorted order.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Deliver pushes ev to userID's live handle, if any. found is false when the
// user has no handle; err is the push error otherwise.
func (r *Registry) Deliver(userID string, ev *Event) (found bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.entries[userID]
	if !ok {
		return false, nil
	}
	return true, h.Push(ev)
}

// Len reports how many users are connected.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes every registered handle. Entries are removed as the
// handles unregister themselves.
func (r *Registry) CloseAll(reason CloseReason) {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.entries))
	for _, h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Close(reason)
	}
}

func (r *Registry) snapshotLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) notifyLocked() {
	if r.notifier == nil {
		return
	}
	online := r.snapshotLocked()
	handles := make([]Handle, 0, len(online))
	for _, id := range online {
		handles = append(handles, r.entries[id])
	}
	r.notifier.PresenceChanged(online, handles)
}
