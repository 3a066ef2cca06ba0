package websocket

import (
	"errors"
	"log"
	"sync"
)

// ConnID is the opaque identifier issued to a connection at registration time.
// It is unique for the lifetime of one socket session and never reused.
type ConnID string

// Conn is the registry's view of a live connection: an identity plus a way to
// push one message to the peer. Send must not block indefinitely; a failed
// send marks the connection for cleanup.
type Conn interface {
	ID() ConnID
	Send(message []byte) error
}

// RoomLookup is the read side of the room directory used to validate joins.
type RoomLookup interface {
	Exists(roomID string) bool
}

var (
	// ErrAlreadyRegistered means Register was called twice for one handle.
	// Connection handles are unique per session, so this is a programming
	// error rather than a runtime condition.
	ErrAlreadyRegistered = errors.New("connection already registered")

	// ErrNotRegistered means the connection was already cleaned up. Callers
	// racing a disconnect treat this as "nothing to do", not a failure.
	ErrNotRegistered = errors.New("connection not registered")

	// ErrRoomNotFound means the directory has no record for the room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotMember means a leave targeted a room the connection never joined.
	ErrNotMember = errors.New("not a member of room")
)

// Member is a snapshot entry handed to broadcast callers.
type Member struct {
	Conn      Conn
	DisplayID string
}

type connEntry struct {
	conn      Conn
	displayID string
	rooms     map[string]struct{}
}

// Registry is the sole owner of the two synchronized membership indices:
// room -> connections and connection -> rooms. A single mutex guards both, so
// cross-room mutations (an unregister touching every joined room) stay atomic.
// Reads take a consistent snapshot under the lock and release it before
// returning; no socket I/O ever happens inside the critical section.
type Registry struct {
	mu    sync.RWMutex
	dir   RoomLookup
	conns map[ConnID]*connEntry
	rooms map[string]map[ConnID]struct{}
}

// NewRegistry creates an empty registry validating joins against dir.
func NewRegistry(dir RoomLookup) *Registry {
	return &Registry{
		dir:   dir,
		conns: make(map[ConnID]*connEntry),
		rooms: make(map[string]map[ConnID]struct{}),
	}
}

// Register adds a connection with an empty room set.
func (r *Registry) Register(c Conn, displayID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.ID()]; ok {
		return ErrAlreadyRegistered
	}
	r.conns[c.ID()] = &connEntry{
		conn:      c,
		displayID: displayID,
		rooms:     make(map[string]struct{}),
	}

	log.Printf("user %s connected, total connections: %d", displayID, len(r.conns))
	return nil
}

// Unregister removes a connection from every room it had joined, pruning rooms
// whose member set becomes empty, and deletes its entries from both indices.
// It is idempotent: unknown connections are a no-op, so a failed-send cleanup
// and the socket's own disconnect path can both call it safely.
func (r *Registry) Unregister(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return
	}

	for roomID := range entry.rooms {
		if members, ok := r.rooms[roomID]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.conns, id)

	log.Printf("user %s disconnected, total connections: %d", entry.displayID, len(r.conns))
}

// Join subscribes a connection to a room and returns the room's new member
// count. Returns ErrRoomNotFound if the directory has no such room, and
// ErrNotRegistered if the connection was closed mid-operation (a race the
// caller treats as a silent no-op).
func (r *Registry) Join(id ConnID, roomID string) (int, error) {
	// Directory lookups hit storage; keep them outside the critical section.
	if !r.dir.Exists(roomID) {
		return 0, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return 0, ErrNotRegistered
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[ConnID]struct{})
		r.rooms[roomID] = members
	}
	members[id] = struct{}{}
	entry.rooms[roomID] = struct{}{}

	return len(members), nil
}

// Leave removes a connection from a room and returns the room's new member
// count. A leave for a room the connection never joined returns ErrNotMember,
// which callers distinguish from a hard failure.
func (r *Registry) Leave(id ConnID, roomID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return 0, ErrNotRegistered
	}
	if _, ok := entry.rooms[roomID]; !ok {
		return 0, ErrNotMember
	}

	delete(entry.rooms, roomID)

	count := 0
	if members, ok := r.rooms[roomID]; ok {
		delete(members, id)
		count = len(members)
		if count == 0 {
			delete(r.rooms, roomID)
		}
	}

	return count, nil
}

// MembersOf returns a snapshot of the connections currently in a room. The
// result is a copy: callers iterate it during fan-out while the registry keeps
// mutating underneath.
func (r *Registry) MembersOf(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	members := make([]Member, 0, len(ids))
	for id := range ids {
		if entry, ok := r.conns[id]; ok {
			members = append(members, Member{Conn: entry.conn, DisplayID: entry.displayID})
		}
	}
	return members
}

// RoomsOf returns a snapshot of the rooms a connection has joined.
func (r *Registry) RoomsOf(id ConnID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[id]
	if !ok {
		return nil
	}

	rooms := make([]string, 0, len(entry.rooms))
	for roomID := range entry.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// Connections returns a snapshot of every registered connection.
func (r *Registry) Connections() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.conns))
	for _, entry := range r.conns {
		members = append(members, Member{Conn: entry.conn, DisplayID: entry.displayID})
	}
	return members
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// MemberCount returns the number of live members in a room.
func (r *Registry) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// RoomCounts returns a snapshot of live member counts per room. Rooms with no
// members never appear; the index prunes them.
func (r *Registry) RoomCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.rooms))
	for roomID, members := range r.rooms {
		counts[roomID] = len(members)
	}
	return counts
}

// EvictRoom removes every connection from a room, prunes the room from the
// live index and returns the evicted members so the caller can notify them.
// Used when a room record is deleted.
func (r *Registry) EvictRoom(roomID string) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	evicted := make([]Member, 0, len(ids))
	for id := range ids {
		if entry, ok := r.conns[id]; ok {
			delete(entry.rooms, roomID)
			evicted = append(evicted, Member{Conn: entry.conn, DisplayID: entry.displayID})
		}
	}
	delete(r.rooms, roomID)

	return evicted
}
