package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/roomcast/chat_backend/directory"
	"github.com/roomcast/chat_backend/metrics"
	"github.com/roomcast/chat_backend/models"
)

// fakeDirectory is an in-memory RoomDirectory.
type fakeDirectory struct {
	rooms map[string]models.Room
}

func (f *fakeDirectory) Exists(roomID string) bool {
	_, ok := f.rooms[roomID]
	return ok
}

func (f *fakeDirectory) Get(roomID string) (*models.Room, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &room, nil
}

func (f *fakeDirectory) List() ([]models.Room, error) {
	rooms := make([]models.Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// fakeOutbound records published envelopes and can be switched to fail.
type fakeOutbound struct {
	published []models.Envelope
	err       error
}

func (f *fakeOutbound) Publish(_ context.Context, env models.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, env)
	return nil
}

func newTestRouter(roomIDs ...string) (*Router, *Registry, *fakeDirectory, *fakeOutbound) {
	dir := &fakeDirectory{rooms: make(map[string]models.Room)}
	for _, id := range roomIDs {
		dir.rooms[id] = models.Room{ID: id, Name: "room " + id}
	}
	reg := NewRegistry(dir)
	out := &fakeOutbound{}
	return NewRouter(reg, dir, out, metrics.New()), reg, dir, out
}

func register(t *testing.T, reg *Registry, id, displayID string) *fakeConn {
	t.Helper()
	c := newConn(id)
	if err := reg.Register(c, displayID); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return c
}

func decodeFrame(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("invalid frame %s: %v", data, err)
	}
	return frame
}

func TestRouter_DispatchDeliversToMembers(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")

	a := register(t, reg, "a", "alice")
	b := register(t, reg, "b", "bob")
	outsider := register(t, reg, "o", "eve")

	router.RequestJoin(a, "general")
	router.RequestJoin(b, "general")

	// Member counts progress 1 then 2 in the join confirmations.
	aJoin := decodeFrame(t, a.messages()[0])
	bJoin := decodeFrame(t, b.messages()[0])
	if got := aJoin["member_count"].(float64); got != 1 {
		t.Errorf("first join member_count = %v, want 1", got)
	}
	if got := bJoin["member_count"].(float64); got != 2 {
		t.Errorf("second join member_count = %v, want 2", got)
	}

	payload := []byte(`{"room_id":"general","content":"hi"}`)
	router.Dispatch("general", payload)

	for _, c := range []*fakeConn{a, b} {
		msgs := c.messages()
		if len(msgs) != 2 {
			t.Fatalf("conn %s got %d messages, want 2 (join confirm + broadcast)", c.id, len(msgs))
		}
		if string(msgs[1]) != string(payload) {
			t.Errorf("conn %s payload = %s, want %s", c.id, msgs[1], payload)
		}
	}
	if got := len(outsider.messages()); got != 0 {
		t.Errorf("non-member received %d messages, want 0", got)
	}
}

func TestRouter_DispatchEmptyRoomIsNoop(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")
	c := register(t, reg, "c", "alice")

	router.Dispatch("general", []byte(`{"content":"into the void"}`))
	router.Dispatch("no-such-room", []byte(`{"content":"nothing"}`))

	if got := len(c.messages()); got != 0 {
		t.Errorf("unjoined conn received %d messages, want 0", got)
	}
	if got := reg.ConnectionCount(); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}
}

func TestRouter_DispatchIsolatesSendFailures(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")

	a := register(t, reg, "a", "alice")
	b := register(t, reg, "b", "bob")
	c := register(t, reg, "c", "carol")
	for _, conn := range []*fakeConn{a, b, c} {
		if _, err := reg.Join(conn.ID(), "general"); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}
	b.failing = true

	payload := []byte(`{"content":"hi"}`)
	router.Dispatch("general", payload)

	// A and C still got the message.
	for _, conn := range []*fakeConn{a, c} {
		msgs := conn.messages()
		if len(msgs) != 1 || string(msgs[0]) != string(payload) {
			t.Errorf("conn %s messages = %v, want exactly the payload", conn.id, msgs)
		}
	}

	// B was cleaned up after the fan-out.
	members := reg.MembersOf("general")
	if len(members) != 2 {
		t.Fatalf("MembersOf = %d members, want 2", len(members))
	}
	for _, m := range members {
		if m.Conn.ID() == b.ID() {
			t.Error("failed conn still a member after dispatch")
		}
	}
	if got := reg.ConnectionCount(); got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}
}

func TestRouter_RequestJoinUnknownRoom(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")
	c := register(t, reg, "c", "alice")

	router.RequestJoin(c, "missing")

	msgs := c.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 error frame", len(msgs))
	}
	frame := decodeFrame(t, msgs[0])
	if frame["type"] != "error" {
		t.Errorf("frame type = %v, want error", frame["type"])
	}
	if len(reg.RoomsOf(c.ID())) != 0 {
		t.Error("failed join mutated the membership index")
	}
}

func TestRouter_RequestJoinClosedConnection(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")
	c := register(t, reg, "c", "alice")
	reg.Unregister(c.ID())

	router.RequestJoin(c, "general")

	if got := len(c.messages()); got != 0 {
		t.Errorf("closed conn received %d frames, want 0", got)
	}
}

func TestRouter_RequestLeave(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")
	c := register(t, reg, "c", "alice")

	// Stale leave: no reply, no index change.
	router.RequestLeave(c, "general")
	if got := len(c.messages()); got != 0 {
		t.Errorf("stale leave produced %d frames, want 0", got)
	}

	router.RequestJoin(c, "general")
	router.RequestLeave(c, "general")

	msgs := c.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d frames, want join + leave confirmations", len(msgs))
	}
	frame := decodeFrame(t, msgs[1])
	if frame["type"] != "room_left" {
		t.Errorf("frame type = %v, want room_left", frame["type"])
	}
	if got := frame["member_count"].(float64); got != 0 {
		t.Errorf("member_count = %v, want 0", got)
	}
}

func TestRouter_Publish(t *testing.T) {
	router, _, _, out := newTestRouter("general")

	room, err := router.Publish(context.Background(), "general", "hello", "alice")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if room.ID != "general" {
		t.Errorf("room.ID = %s, want general", room.ID)
	}

	if len(out.published) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(out.published))
	}
	env := out.published[0]
	if env.RoomID != "general" || env.Content != "hello" || env.Sender != "alice" {
		t.Errorf("envelope = %+v, want room general / content hello / sender alice", env)
	}
	if env.RoomName != "room general" {
		t.Errorf("envelope.RoomName = %q, want %q", env.RoomName, "room general")
	}
	if env.Timestamp.IsZero() {
		t.Error("envelope.Timestamp is zero")
	}
}

func TestRouter_PublishUnknownRoom(t *testing.T) {
	router, _, _, out := newTestRouter("general")

	_, err := router.Publish(context.Background(), "missing", "hello", "alice")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Publish error = %v, want ErrRoomNotFound", err)
	}
	if len(out.published) != 0 {
		t.Errorf("published %d envelopes for unknown room, want 0", len(out.published))
	}
}

func TestRouter_PublishTransportFailure(t *testing.T) {
	router, _, _, out := newTestRouter("general")
	out.err = errors.New("connection refused")

	if _, err := router.Publish(context.Background(), "general", "hello", "alice"); err == nil {
		t.Error("Publish succeeded despite transport failure")
	}
}

func TestRouter_DisconnectLeavesNoTrace(t *testing.T) {
	router, reg, _, _ := newTestRouter("x", "y")
	a := register(t, reg, "a", "alice")
	b := register(t, reg, "b", "bob")

	router.RequestJoin(a, "x")
	router.RequestJoin(a, "y")
	router.RequestJoin(b, "y")

	reg.Unregister(a.ID())

	for _, roomID := range []string{"x", "y"} {
		for _, m := range reg.MembersOf(roomID) {
			if m.Conn.ID() == a.ID() {
				t.Errorf("disconnected conn still in MembersOf(%s)", roomID)
			}
		}
	}
	// a was the sole member of x.
	if _, ok := reg.RoomCounts()["x"]; ok {
		t.Error("room x still in live index after sole member disconnected")
	}
}

func TestRouter_EvictRoom(t *testing.T) {
	router, reg, _, _ := newTestRouter("doomed")
	a := register(t, reg, "a", "alice")
	router.RequestJoin(a, "doomed")

	router.EvictRoom("doomed")

	msgs := a.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d frames, want join confirm + room_left", len(msgs))
	}
	frame := decodeFrame(t, msgs[1])
	if frame["type"] != "room_left" {
		t.Errorf("frame type = %v, want room_left", frame["type"])
	}
	if len(reg.RoomsOf(a.ID())) != 0 {
		t.Error("evicted conn still lists the room")
	}
	if _, ok := reg.RoomCounts()["doomed"]; ok {
		t.Error("evicted room still in live index")
	}
}

func TestRouter_BroadcastRoomList(t *testing.T) {
	router, reg, _, _ := newTestRouter("general")
	a := register(t, reg, "a", "alice")
	b := register(t, reg, "b", "bob")

	router.BroadcastRoomList()

	for _, c := range []*fakeConn{a, b} {
		msgs := c.messages()
		if len(msgs) != 1 {
			t.Fatalf("conn %s got %d frames, want 1", c.id, len(msgs))
		}
		frame := decodeFrame(t, msgs[0])
		if frame["type"] != "rooms_updated" {
			t.Errorf("frame type = %v, want rooms_updated", frame["type"])
		}
	}
}

func TestRouter_RoomsInfo(t *testing.T) {
	router, reg, dir, _ := newTestRouter("general")
	dir.rooms["ghost"] = models.Room{ID: "ghost", Name: "ghost"}

	a := register(t, reg, "a", "alice")
	router.RequestJoin(a, "general")

	info := router.RoomsInfo()
	if len(info) != 1 {
		t.Fatalf("RoomsInfo has %d rooms, want 1 (only rooms with live members)", len(info))
	}
	entry, ok := info["general"]
	if !ok {
		t.Fatal("RoomsInfo missing general")
	}
	if entry["member_count"] != 1 {
		t.Errorf("member_count = %v, want 1", entry["member_count"])
	}
	if entry["name"] != "room general" {
		t.Errorf("name = %v, want %q", entry["name"], "room general")
	}
}
