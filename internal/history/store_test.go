package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	store := Load(filepath.Join(t.TempDir(), "nope", "durations.json"))

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", store.Len())
	}
	if _, ok := store.Duration("tests/UserTest.php"); ok {
		t.Error("expected no duration for unknown test")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durations.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := Load(path)
	if store.Len() != 0 {
		t.Errorf("corrupt file should load as empty store, got %d entries", store.Len())
	}
}

func TestLoad_ExistingDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durations.json")
	content := `{"tests/UserTest.php": 1200, "tests/OrderTest.php": 300}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write history file: %v", err)
	}

	store := Load(path)

	if millis, ok := store.Duration("tests/UserTest.php"); !ok || millis != 1200 {
		t.Errorf("expected 1200 for UserTest, got %d (ok=%v)", millis, ok)
	}
	if millis, ok := store.Duration("tests/OrderTest.php"); !ok || millis != 300 {
		t.Errorf("expected 300 for OrderTest, got %d (ok=%v)", millis, ok)
	}
}

func TestStore_UpdatePersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durations.json")

	store := Load(path)
	store.Update("tests/UserTest.php", 850)

	// A fresh load must observe the write
	reloaded := Load(path)
	if millis, ok := reloaded.Duration("tests/UserTest.php"); !ok || millis != 850 {
		t.Errorf("expected persisted 850, got %d (ok=%v)", millis, ok)
	}

	// Updating an existing test overwrites the previous value
	store.Update("tests/UserTest.php", 1100)
	reloaded = Load(path)
	if millis, _ := reloaded.Duration("tests/UserTest.php"); millis != 1100 {
		t.Errorf("expected overwritten 1100, got %d", millis)
	}
}

func TestStore_UpdateCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage", "durations.json")

	store := Load(path)
	store.Update("tests/UserTest.php", 420)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("history file not created: %v", err)
	}
	var durations map[string]int64
	if err := json.Unmarshal(data, &durations); err != nil {
		t.Fatalf("history file not valid JSON: %v", err)
	}
	if durations["tests/UserTest.php"] != 420 {
		t.Errorf("expected 420, got %d", durations["tests/UserTest.php"])
	}
}

func TestStore_SnapshotIsPinned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "durations.json")
	snapshot := filepath.Join(dir, "snapshot.json")

	store := Load(path)
	store.Update("tests/UserTest.php", 500)

	if err := store.SnapshotTo(snapshot); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Later updates must not leak into the snapshot
	store.Update("tests/UserTest.php", 9000)
	store.Update("tests/OrderTest.php", 100)

	pinned := Load(snapshot)
	if millis, _ := pinned.Duration("tests/UserTest.php"); millis != 500 {
		t.Errorf("snapshot changed after update: got %d, want 500", millis)
	}
	if _, ok := pinned.Duration("tests/OrderTest.php"); ok {
		t.Error("snapshot must not contain tests recorded after it was taken")
	}
}
