package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestArchiveStore(t *testing.T) {
	tmpDir := t.TempDir()

	storePath := filepath.Join(tmpDir, "pinphotos.db")
	if err := os.WriteFile(storePath, []byte("sqlite content"), 0644); err != nil {
		t.Fatalf("Failed to create store file: %v", err)
	}
	if err := os.WriteFile(storePath+"-journal", []byte("journal"), 0644); err != nil {
		t.Fatalf("Failed to create journal file: %v", err)
	}

	archivedPath, err := ArchiveStore(storePath)
	if err != nil {
		t.Fatalf("ArchiveStore failed: %v", err)
	}

	// Check that the store file no longer exists
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Error("Store file still exists after archiving")
	}
	if _, err := os.Stat(storePath + "-journal"); !os.IsNotExist(err) {
		t.Error("Journal file still exists after archiving")
	}

	archiveDir := filepath.Join(tmpDir, "archive")
	if filepath.Dir(archivedPath) != archiveDir {
		t.Errorf("Expected archive in %s, got %s", archiveDir, archivedPath)
	}

	// Verify the archived name (should be pinphotos-YYYYMMDD-HHMMSS.db)
	archivedName := filepath.Base(archivedPath)
	if !strings.HasPrefix(archivedName, "pinphotos-") || !strings.HasSuffix(archivedName, ".db") {
		t.Errorf("Unexpected archive name: %s", archivedName)
	}
	parts := strings.Split(strings.TrimSuffix(archivedName, ".db"), "-")
	if len(parts) != 3 {
		t.Errorf("Invalid archive name format: %s", archivedName)
	}

	content, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("Failed to read archived store: %v", err)
	}
	if string(content) != "sqlite content" {
		t.Errorf("Archived content mismatch: %q", content)
	}
	if _, err := os.Stat(archivedPath + "-journal"); err != nil {
		t.Error("Journal file not moved next to the archive")
	}
}

func TestArchiveStore_NonExistentFile(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := ArchiveStore(filepath.Join(tmpDir, "nonexistent.db"))
	if err == nil {
		t.Fatal("Expected error for non-existent store")
	}

	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected 'does not exist' error, got: %v", err)
	}
}

func TestArchiveStore_Directory(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := ArchiveStore(tmpDir); err == nil {
		t.Error("Expected error when archiving a directory")
	}
}

func TestArchiveStore_MultipleArchives(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "pinphotos.db")

	// Archive twice to ensure unique names
	for i := 0; i < 2; i++ {
		if err := os.WriteFile(storePath, []byte("store "+string(rune('a'+i))), 0644); err != nil {
			t.Fatalf("Failed to create store file: %v", err)
		}

		if i == 1 {
			time.Sleep(10 * time.Millisecond)
		}

		if _, err := ArchiveStore(storePath); err != nil {
			t.Fatalf("ArchiveStore failed on iteration %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(tmpDir, "archive"))
	if err != nil {
		t.Fatalf("Failed to read archive directory: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries in archive directory, got %d", len(entries))
	}

	if entries[0].Name() == entries[1].Name() {
		t.Error("Archive names are not unique")
	}
}
