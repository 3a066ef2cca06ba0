package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/roomcast/chat_backend/directory"
	"github.com/roomcast/chat_backend/models"
	"github.com/roomcast/chat_backend/websocket"
	"gorm.io/gorm"
)

type CreateRoomInput struct {
	Name        string `json:"name" binding:"required" example:"General Chat"`
	Description string `json:"description" example:"General discussion"`
}

// RoomController handles room CRUD. Member counts in responses always come
// from the live connection registry, never from storage.
type RoomController struct {
	db     *gorm.DB
	dir    *directory.Directory
	router *websocket.Router
}

func NewRoomController(db *gorm.DB, dir *directory.Directory, router *websocket.Router) *RoomController {
	return &RoomController{db: db, dir: dir, router: router}
}

// GetRooms godoc
// @Summary List all rooms
// @Description Returns all rooms with current member counts from active connections
// @Tags rooms
// @Produce json
// @Success 200 {object} map[string]interface{} "List of rooms"
// @Router /api/rooms [get]
func (r *RoomController) GetRooms(c *gin.Context) {
	summaries, err := r.router.RoomSummaries()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// CreateRoom godoc
// @Summary Create a new chat room
// @Description Creates a room and notifies all connected clients
// @Tags rooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param room body CreateRoomInput true "Room Creation"
// @Success 201 {object} map[string]interface{} "Room created successfully"
// @Failure 400 {object} map[string]string "Invalid input"
// @Router /api/rooms [post]
func (r *RoomController) CreateRoom(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	createdBy := "anonymous"
	var user models.User
	if err := r.db.First(&user, userID).Error; err == nil {
		createdBy = user.Username
	}

	room, err := r.dir.Create(input.Name, input.Description, createdBy)
	switch {
	case errors.Is(err, directory.ErrNameRequired), errors.Is(err, directory.ErrNameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	r.router.BroadcastRoomList()

	c.JSON(http.StatusCreated, gin.H{
		"message": "Room created successfully",
		"room":    room,
	})
}

// GetRoom godoc
// @Summary Get details of a specific room
// @Tags rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} map[string]interface{} "Room details"
// @Failure 404 {object} map[string]string "Room not found"
// @Router /api/rooms/{id} [get]
func (r *RoomController) GetRoom(c *gin.Context) {
	room, err := r.dir.Get(c.Param("id"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":         room,
		"member_count": r.router.MemberCount(room.ID),
	})
}

// DeleteRoom godoc
// @Summary Delete a room
// @Description Evicts all live members, deletes the record and notifies all clients
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Room ID"
// @Success 200 {object} map[string]string "Room deleted"
// @Failure 404 {object} map[string]string "Room not found"
// @Router /api/rooms/{id} [delete]
func (r *RoomController) DeleteRoom(c *gin.Context) {
	roomID := c.Param("id")

	if _, err := r.dir.Get(roomID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch room"})
		return
	}

	// Kick live members first so the registry never references a dead room.
	r.router.EvictRoom(roomID)

	if err := r.dir.Delete(roomID); err != nil && !errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete room"})
		return
	}

	r.router.BroadcastRoomList()

	c.JSON(http.StatusOK, gin.H{
		"status":  "deleted",
		"room_id": roomID,
	})
}
