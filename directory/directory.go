// Package directory owns the persisted room records. It is the authoritative
// source for which rooms exist; live membership is tracked elsewhere, in the
// connection registry.
package directory

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/roomcast/chat_backend/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a room identifier has no record.
	ErrNotFound = errors.New("room not found")

	// ErrNameTaken is returned when creating a room whose name is already in
	// use, compared case-insensitively.
	ErrNameTaken = errors.New("room name already exists")

	// ErrNameRequired is returned when creating a room with a blank name.
	ErrNameRequired = errors.New("room name required")
)

// Directory provides CRUD access to room metadata. The broadcast router only
// ever reads from it.
type Directory struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Create inserts a new room. The name must be non-empty and unique among all
// rooms ignoring case.
func (d *Directory) Create(name, description, createdBy string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	var count int64
	if err := d.db.Model(&models.Room{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check room name: %w", err)
	}
	if count > 0 {
		return nil, ErrNameTaken
	}

	room := models.Room{
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
	}
	if err := d.db.Create(&room).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &room, nil
}

// Get returns the room with the given identifier, or ErrNotFound.
func (d *Directory) Get(roomID string) (*models.Room, error) {
	var room models.Room
	err := d.db.First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room: %w", err)
	}
	return &room, nil
}

// Exists reports whether a room record exists. Lookup failures are treated as
// absence; the caller cannot do anything useful with a storage error here.
func (d *Directory) Exists(roomID string) bool {
	var count int64
	if err := d.db.Model(&models.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		log.Printf("error checking room existence: %v", err)
		return false
	}
	return count > 0
}

// List returns all rooms ordered by creation time.
func (d *Directory) List() ([]models.Room, error) {
	var rooms []models.Room
	if err := d.db.Order("created_at").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// Delete removes a room record. Returns ErrNotFound if no record existed.
func (d *Directory) Delete(roomID string) error {
	result := d.db.Delete(&models.Room{}, "id = ?", roomID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedDefaults creates the starter rooms on an empty directory so users have
// somewhere to chat immediately. No-op when any room already exists.
func (d *Directory) SeedDefaults() error {
	var count int64
	if err := d.db.Model(&models.Room{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count rooms: %w", err)
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Room{
		{Name: "General", Description: "General discussion", CreatedBy: "system"},
		{Name: "Welcome", Description: "Welcome new users!", CreatedBy: "system"},
	}
	for i := range defaults {
		if err := d.db.Create(&defaults[i]).Error; err != nil {
			return fmt.Errorf("failed to seed room %q: %w", defaults[i].Name, err)
		}
	}

	log.Printf("Created %d default rooms", len(defaults))
	return nil
}
