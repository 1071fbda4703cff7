package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// journalSuffixes are SQLite side files moved along with the database
var journalSuffixes = []string{"-journal", "-wal", "-shm"}

// ArchiveStore moves the store file into an "archive" directory next to it
// and returns the new path. The store must be closed.
func ArchiveStore(storePath string) (string, error) {
	// Check if store file exists
	info, err := os.Stat(storePath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("store file does not exist: %s", storePath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat store file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("store path is a directory: %s", storePath)
	}

	archiveDir := filepath.Join(filepath.Dir(storePath), "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(storePath), filepath.Ext(storePath))
	ext := filepath.Ext(storePath)

	timestamp := time.Now().Format("20060102-150405")
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s%s", base, timestamp, ext))

	// Check if archive already exists (unlikely but possible)
	if _, err := os.Stat(archivePath); err == nil {
		timestamp = time.Now().Format("20060102-150405.000000")
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("%s-%s%s", base, timestamp, ext))
	}

	if err := os.Rename(storePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive store: %w", err)
	}

	for _, suffix := range journalSuffixes {
		side := storePath + suffix
		if _, err := os.Stat(side); err == nil {
			if err := os.Rename(side, archivePath+suffix); err != nil {
				return archivePath, fmt.Errorf("failed to archive %s: %w", filepath.Base(side), err)
			}
		}
	}

	return archivePath, nil
}
