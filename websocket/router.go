package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/roomcast/chat_backend/directory"
	"github.com/roomcast/chat_backend/metrics"
	"github.com/roomcast/chat_backend/models"
)

// RoomDirectory is the read-only slice of the room directory the router needs.
type RoomDirectory interface {
	Exists(roomID string) bool
	Get(roomID string) (*models.Room, error)
	List() ([]models.Room, error)
}

// Outbound is the transport adapter's publish side.
type Outbound interface {
	Publish(ctx context.Context, env models.Envelope) error
}

// Router fans inbound transport messages out to the connections subscribed to
// the target room, and runs the thin orchestration behind the join/leave and
// publish paths. It is the only place an inbound message becomes per-connection
// sends.
type Router struct {
	registry *Registry
	dir      RoomDirectory
	outbound Outbound
	stats    *metrics.Collector
}

func NewRouter(registry *Registry, dir RoomDirectory, outbound Outbound, stats *metrics.Collector) *Router {
	return &Router{
		registry: registry,
		dir:      dir,
		outbound: outbound,
		stats:    stats,
	}
}

// Dispatch routes one inbound transport message to every current member of the
// room. A room with no live members is the common case and returns silently.
//
// The member snapshot is taken before any send begins, so a connection joining
// mid-broadcast either receives the message or doesn't; it never observes a
// half-mutated set. Sends happen outside the registry lock, one failure never
// aborts delivery to the rest, and failed connections are unregistered only
// after the fan-out completes.
func (r *Router) Dispatch(roomID string, payload []byte) {
	members := r.registry.MembersOf(roomID)
	if len(members) == 0 {
		return
	}

	var failed []ConnID
	for _, m := range members {
		if err := m.Conn.Send(payload); err != nil {
			log.Printf("send error to %s: %v", m.DisplayID, err)
			failed = append(failed, m.Conn.ID())
		}
	}
	for _, id := range failed {
		r.registry.Unregister(id)
	}

	r.stats.IncDispatched()
}

// RequestJoin subscribes a connection to a room and confirms with the current
// member count. An unknown room gets an error frame; a connection that closed
// mid-call gets nothing.
func (r *Router) RequestJoin(c Conn, roomID string) {
	count, err := r.registry.Join(c.ID(), roomID)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		r.sendError(c, "Room not found")
		return
	case errors.Is(err, ErrNotRegistered):
		return
	}

	payload := map[string]interface{}{
		"type":         "room_joined",
		"member_count": count,
	}
	if room, err := r.dir.Get(roomID); err == nil {
		payload["room"] = room
		log.Printf("%s joined %q (%d members)", c.ID(), room.Name, count)
	} else {
		payload["room_id"] = roomID
	}
	r.send(c, payload)
}

// RequestLeave unsubscribes a connection from a room and confirms with the
// updated member count. Leaving a room the connection never joined is not an
// error; the client may have sent a stale leave and gets no reply.
func (r *Router) RequestLeave(c Conn, roomID string) {
	count, err := r.registry.Leave(c.ID(), roomID)
	if err != nil {
		return
	}

	r.send(c, map[string]interface{}{
		"type":         "room_left",
		"room_id":      roomID,
		"member_count": count,
	})
}

// Publish verifies the room, wraps the content in the canonical envelope and
// hands it to the transport's outbound side. The message comes back through
// Dispatch once the transport delivers it.
func (r *Router) Publish(ctx context.Context, roomID, content, sender string) (*models.Room, error) {
	room, err := r.dir.Get(roomID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	env := models.Envelope{
		RoomID:    room.ID,
		RoomName:  room.Name,
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}
	if err := r.outbound.Publish(ctx, env); err != nil {
		return nil, fmt.Errorf("failed to publish to room %s: %w", roomID, err)
	}

	r.stats.IncPublished()
	return room, nil
}

// roomSummary is a room record with the live member count merged in.
type roomSummary struct {
	models.Room
	MemberCount int `json:"member_count"`
}

// RoomSummaries returns every room with its live member count.
func (r *Router) RoomSummaries() ([]roomSummary, error) {
	rooms, err := r.dir.List()
	if err != nil {
		return nil, err
	}

	counts := r.registry.RoomCounts()
	summaries := make([]roomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, roomSummary{Room: room, MemberCount: counts[room.ID]})
	}
	return summaries, nil
}

// MemberCount returns the live member count for one room.
func (r *Router) MemberCount(roomID string) int {
	return r.registry.MemberCount(roomID)
}

// RoomsInfo maps each room with live members to its name and member count.
func (r *Router) RoomsInfo() map[string]map[string]interface{} {
	info := make(map[string]map[string]interface{})
	for roomID, count := range r.registry.RoomCounts() {
		name := "Unknown"
		if room, err := r.dir.Get(roomID); err == nil {
			name = room.Name
		}
		info[roomID] = map[string]interface{}{
			"name":         name,
			"member_count": count,
		}
	}
	return info
}

// SendRoomList replies to a connection with the full room list.
func (r *Router) SendRoomList(c Conn) {
	summaries, err := r.RoomSummaries()
	if err != nil {
		log.Printf("error listing rooms: %v", err)
		r.sendError(c, "Failed to list rooms")
		return
	}
	r.send(c, map[string]interface{}{
		"type":  "rooms_list",
		"rooms": summaries,
	})
}

// SendRoomsInfo replies to a connection with the live-room overview.
func (r *Router) SendRoomsInfo(c Conn) {
	r.send(c, map[string]interface{}{
		"type":  "rooms_info",
		"rooms": r.RoomsInfo(),
	})
}

// SendError pushes an error frame to a connection.
func (r *Router) SendError(c Conn, message string) {
	r.sendError(c, message)
}

// BroadcastRoomList pushes the updated room list to every connection, after a
// room was created or deleted.
func (r *Router) BroadcastRoomList() {
	summaries, err := r.RoomSummaries()
	if err != nil {
		log.Printf("error listing rooms for broadcast: %v", err)
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "rooms_updated",
		"rooms": summaries,
	})
	if err != nil {
		log.Printf("error marshaling room list: %v", err)
		return
	}

	var failed []ConnID
	for _, m := range r.registry.Connections() {
		if err := m.Conn.Send(payload); err != nil {
			failed = append(failed, m.Conn.ID())
		}
	}
	for _, id := range failed {
		r.registry.Unregister(id)
	}
}

// EvictRoom removes every live member from a room ahead of room deletion,
// notifying each with a room_left frame.
func (r *Router) EvictRoom(roomID string) {
	for _, m := range r.registry.EvictRoom(roomID) {
		r.send(m.Conn, map[string]interface{}{
			"type":         "room_left",
			"room_id":      roomID,
			"member_count": 0,
		})
	}
}

func (r *Router) sendError(c Conn, message string) {
	r.send(c, map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// send marshals and pushes one frame; a failed send means the socket is gone,
// so the connection is cleaned up.
func (r *Router) send(c Conn, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("error marshaling frame: %v", err)
		return
	}
	if err := c.Send(data); err != nil {
		r.registry.Unregister(c.ID())
	}
}
