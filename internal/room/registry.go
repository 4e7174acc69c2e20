// Package room tracks which participants are in which two-party call and
// resolves "the other side" lookups for the dispatch layer.
//
// The Registry is a pure membership structure: it never sends notifications
// itself. Join/leave side effects (peer_joined / peer_left messages) are the
// connection layer's responsibility, driven by the values the Registry
// returns. One Registry instance is shared by all connections and is
// internally synchronised.
package room

import (
	"errors"
	"sync"
)

// MaxMembers is the hard cap on participants per room. A third join attempt
// is rejected outright, never queued, and never evicts an existing member.
const MaxMembers = 2

// ErrRoomFull is returned by [Registry.Join] when the room already holds two
// live members.
var ErrRoomFull = errors.New("room: already at capacity")

// Member is the minimal view of a session the registry needs. The concrete
// type is the connection layer's session; the registry never owns it.
type Member interface {
	// ID is the participant identifier, unique within a room.
	ID() string

	// Connected reports whether the member's transport is still live.
	// Disconnected members are invisible to peer lookups and hold no seat
	// against room capacity; their entry is removed by Leave at teardown.
	Connected() bool
}

// Registry maps room identifiers to their members. The zero value is not
// usable; construct with [NewRegistry]. All methods are safe for concurrent
// use.
type Registry[M Member] struct {
	mu    sync.RWMutex
	rooms map[string][]M
}

// NewRegistry creates an empty Registry.
func NewRegistry[M Member]() *Registry[M] {
	return &Registry[M]{rooms: make(map[string][]M)}
}

// Join adds m to the room, creating the room on first join. created reports
// whether this join brought the room into existence. Returns [ErrRoomFull]
// when the room already holds [MaxMembers] connected members; a member whose
// transport dropped but whose teardown has not reached Leave yet does not
// hold the seat. Existing membership is never altered by a rejected join.
func (r *Registry[M]) Join(roomID string, m M) (created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	live := 0
	for _, existing := range members {
		if existing.Connected() {
			live++
		}
	}
	if live >= MaxMembers {
		return false, ErrRoomFull
	}
	r.rooms[roomID] = append(members, m)
	return len(members) == 0, nil
}

// Peer returns the other connected member of the room, excluding userID.
// ok is false when the participant is alone or the peer has already been
// marked disconnected.
func (r *Registry[M]) Peer(roomID, userID string) (peer M, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.rooms[roomID] {
		if m.ID() != userID && m.Connected() {
			return m, true
		}
	}
	var zero M
	return zero, false
}

// Leave removes userID from the room and deletes the room entry once it is
// empty. It returns the remaining member (if any) so the caller can notify
// it of the departure. Leaving a room one is not in is a no-op.
func (r *Registry[M]) Leave(roomID, userID string) (remaining M, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero M
	members := r.rooms[roomID]
	kept := members[:0]
	removed := false
	for _, m := range members {
		if m.ID() == userID {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		return zero, false
	}

	if len(kept) == 0 {
		delete(r.rooms, roomID)
		return zero, false
	}
	r.rooms[roomID] = kept
	return kept[0], true
}

// Snapshot returns a copy of the current membership, keyed by room ID with
// member IDs in join order. Used by the status surface; no core behaviour
// depends on it.
func (r *Registry[M]) Snapshot() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.rooms))
	for id, members := range r.rooms {
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID()
		}
		out[id] = ids
	}
	return out
}

// Len returns the number of active rooms.
func (r *Registry[M]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
