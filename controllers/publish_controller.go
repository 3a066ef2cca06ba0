package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/roomcast/chat_backend/websocket"
)

type PublishMessageInput struct {
	RoomID  string `json:"room_id" binding:"required"`
	Content string `json:"content" binding:"required"`
	Sender  string `json:"sender"`
}

// PublishController exposes the REST publish path. Messages go out through the
// transport adapter and come back in through the router's dispatch loop.
type PublishController struct {
	router *websocket.Router
}

func NewPublishController(router *websocket.Router) *PublishController {
	return &PublishController{router: router}
}

// Publish godoc
// @Summary Publish a message to a room
// @Description Publishes via the configured pub/sub transport; only connections joined to the room receive it
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param message body PublishMessageInput true "Message"
// @Success 200 {object} map[string]string "Publish accepted"
// @Failure 404 {object} map[string]string "Room not found"
// @Failure 500 {object} map[string]string "Publish failed"
// @Router /api/publish [post]
func (p *PublishController) Publish(c *gin.Context) {
	var input PublishMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender := input.Sender
	if sender == "" {
		sender = "anonymous"
	}

	room, err := p.router.Publish(c.Request.Context(), input.RoomID, input.Content, sender)
	switch {
	case errors.Is(err, websocket.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"room":   room.Name,
		})
	}
}
