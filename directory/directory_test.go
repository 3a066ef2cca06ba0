package directory

import (
	"errors"
	"testing"

	"github.com/roomcast/chat_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	// A named in-memory database with shared cache keeps every pooled
	// connection on the same store while isolating tests from each other.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Room{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return New(db)
}

func TestDirectory_Create(t *testing.T) {
	dir := newTestDirectory(t)

	room, err := dir.Create("General", "General discussion", "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if room.ID == "" {
		t.Error("created room has no ID")
	}
	if room.Name != "General" {
		t.Errorf("room.Name = %q, want General", room.Name)
	}

	got, err := dir.Get(room.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "General" || got.CreatedBy != "alice" {
		t.Errorf("Get returned %+v", got)
	}
}

func TestDirectory_CreateTrimsName(t *testing.T) {
	dir := newTestDirectory(t)

	room, err := dir.Create("  Lounge  ", "", "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if room.Name != "Lounge" {
		t.Errorf("room.Name = %q, want Lounge", room.Name)
	}
}

func TestDirectory_CreateBlankName(t *testing.T) {
	dir := newTestDirectory(t)

	for _, name := range []string{"", "   "} {
		if _, err := dir.Create(name, "", "alice"); !errors.Is(err, ErrNameRequired) {
			t.Errorf("Create(%q) error = %v, want ErrNameRequired", name, err)
		}
	}
}

func TestDirectory_CreateDuplicateName(t *testing.T) {
	dir := newTestDirectory(t)

	if _, err := dir.Create("General", "", "alice"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Uniqueness is case-insensitive.
	for _, name := range []string{"General", "general", "GENERAL"} {
		if _, err := dir.Create(name, "", "bob"); !errors.Is(err, ErrNameTaken) {
			t.Errorf("Create(%q) error = %v, want ErrNameTaken", name, err)
		}
	}
}

func TestDirectory_GetNotFound(t *testing.T) {
	dir := newTestDirectory(t)

	if _, err := dir.Get("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestDirectory_Exists(t *testing.T) {
	dir := newTestDirectory(t)

	room, err := dir.Create("General", "", "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !dir.Exists(room.ID) {
		t.Error("Exists returned false for an existing room")
	}
	if dir.Exists("no-such-id") {
		t.Error("Exists returned true for a missing room")
	}
}

func TestDirectory_List(t *testing.T) {
	dir := newTestDirectory(t)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		if _, err := dir.Create(name, "", "alice"); err != nil {
			t.Fatalf("Create(%q) failed: %v", name, err)
		}
	}

	rooms, err := dir.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rooms) != 3 {
		t.Fatalf("List returned %d rooms, want 3", len(rooms))
	}
}

func TestDirectory_Delete(t *testing.T) {
	dir := newTestDirectory(t)

	room, err := dir.Create("General", "", "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := dir.Delete(room.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := dir.Get(room.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := dir.Delete(room.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestDirectory_SeedDefaults(t *testing.T) {
	dir := newTestDirectory(t)

	if err := dir.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}
	rooms, err := dir.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("seeded %d rooms, want 2", len(rooms))
	}

	// Seeding again, or seeding a non-empty directory, adds nothing.
	if err := dir.SeedDefaults(); err != nil {
		t.Fatalf("second SeedDefaults failed: %v", err)
	}
	rooms, err = dir.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Errorf("after reseed directory has %d rooms, want 2", len(rooms))
	}
}
