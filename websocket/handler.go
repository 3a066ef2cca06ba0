package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler upgrades websocket requests and drives the per-connection read loop.
type Handler struct {
	registry *Registry
	router   *Router
}

func NewHandler(registry *Registry, router *Router) *Handler {
	return &Handler{registry: registry, router: router}
}

// HandleConnection handles websocket connections.
//
// The user_id query parameter is a free-form display name; it is not
// authenticated and defaults to "anonymous".
func (h *Handler) HandleConnection(c *gin.Context) {
	displayID := c.Query("user_id")
	if displayID == "" {
		displayID = "anonymous"
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("error upgrading connection: %v", err)
		return
	}

	client := NewClient(conn, displayID)
	if err := h.registry.Register(client, displayID); err != nil {
		// Freshly generated identifiers cannot collide in practice.
		log.Printf("error registering connection: %v", err)
		conn.Close()
		return
	}

	go client.writePump()
	go h.readPump(client)
}

// clientAction is one inbound protocol frame.
type clientAction struct {
	Action string          `json:"action"`
	RoomID string          `json:"room_id"`
	Data   *publishRequest `json:"data"`
}

type publishRequest struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// readPump pumps frames from the websocket connection into the router. On any
// read error the connection is unregistered from every room it joined.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.registry.Unregister(client.ID())
		client.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			return
		}
		h.handleFrame(client, message)
	}
}

func (h *Handler) handleFrame(client *Client, message []byte) {
	var action clientAction
	if err := json.Unmarshal(message, &action); err != nil {
		h.router.SendError(client, "Invalid JSON")
		return
	}

	switch action.Action {
	case "join":
		if action.RoomID != "" {
			h.router.RequestJoin(client, action.RoomID)
		}
	case "leave":
		if action.RoomID != "" {
			h.router.RequestLeave(client, action.RoomID)
		}
	case "list_rooms":
		h.router.SendRoomList(client)
	case "get_rooms_info":
		h.router.SendRoomsInfo(client)
	case "message_publish":
		h.handlePublish(client, action.Data)
	default:
		h.router.SendError(client, "Unknown action: "+action.Action)
	}
}

func (h *Handler) handlePublish(client *Client, req *publishRequest) {
	if req == nil || req.RoomID == "" {
		h.router.SendError(client, "room_id is required")
		return
	}

	sender := req.Sender
	if sender == "" {
		sender = client.displayID
	}

	_, err := h.router.Publish(context.Background(), req.RoomID, req.Content, sender)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		h.router.SendError(client, "Room not found")
	case err != nil:
		log.Printf("publish error: %v", err)
		h.router.SendError(client, "Failed to publish message")
	default:
		h.router.send(client, map[string]interface{}{
			"type":   "message_publish",
			"status": "success",
		})
	}
}
