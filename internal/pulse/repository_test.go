package pulse

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the lines table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Schema matching the embedded migration.
	schema := `
		CREATE TABLE lines (
			name TEXT PRIMARY KEY,
			chip TEXT NOT NULL DEFAULT '',
			line_name TEXT NOT NULL DEFAULT '',
			line_offset INTEGER NOT NULL DEFAULT 0,
			active_low INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'config',
			enabled INTEGER NOT NULL DEFAULT 0,
			freq INTEGER NOT NULL DEFAULT 0,
			on_cycles INTEGER NOT NULL DEFAULT 1,
			off_cycles INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		) STRICT;`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	rec := &Record{
		Name: "led0",
		Binding: Binding{
			Chip:      "/dev/gpiochip0",
			LineName:  "GPIO18",
			Offset:    18,
			ActiveLow: true,
			Source:    "mqtt",
		},
		Settings: Settings{
			Enabled:   true,
			Freq:      10,
			OnCycles:  2,
			OffCycles: 3,
		},
	}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := repo.Get(ctx, "led0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Binding != rec.Binding {
		t.Errorf("binding = %+v, want %+v", got.Binding, rec.Binding)
	}
	if got.Settings != rec.Settings {
		t.Errorf("settings = %+v, want %+v", got.Settings, rec.Settings)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("updated_at not set")
	}

	// Upsert replaces in place.
	rec.Settings.Freq = 50
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, err = repo.Get(ctx, "led0")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.Settings.Freq != 50 {
		t.Errorf("freq after upsert = %d, want 50", got.Settings.Freq)
	}
}

func TestSQLiteRepositoryGetNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("Get(nope) = %v, want ErrLineNotFound", err)
	}
}

func TestSQLiteRepositoryList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"pump", "fan", "led0"} {
		rec := &Record{Name: name, Binding: Binding{Source: "config"}}
		if err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", name, err)
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"fan", "led0", "pump"}
	if len(records) != len(want) {
		t.Fatalf("List returned %d records, want %d", len(records), len(want))
	}
	for i, name := range want {
		if records[i].Name != name {
			t.Errorf("List[%d] = %s, want %s", i, records[i].Name, name)
		}
	}
}

func TestSQLiteRepositoryDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, &Record{Name: "led0"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.Delete(ctx, "led0"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "led0"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("Get after Delete = %v, want ErrLineNotFound", err)
	}
	if err := repo.Delete(ctx, "led0"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("second Delete = %v, want ErrLineNotFound", err)
	}
}
