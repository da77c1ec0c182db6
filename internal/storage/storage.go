package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"crypto_bot/internal/models"
)

// SnapshotVersion is the schema version written by SaveSnapshot.
const SnapshotVersion = 2

// ErrNoSnapshot is returned by LoadSnapshot when the file does not exist.
var ErrNoSnapshot = errors.New("no catalog snapshot")

// CatalogSnapshot is the last good coin catalog as persisted on disk.
type CatalogSnapshot struct {
	Version string         `json:"version"` // decimal integer
	SavedAt time.Time      `json:"saved_at"`
	Assets  []models.Asset `json:"assets"`
}

// LoadSnapshot reads a catalog snapshot, migrating older schemas in memory.
func LoadSnapshot(path string) (*CatalogSnapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var s CatalogSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding catalog snapshot %s: %w", path, err)
	}
	if err := migrateSnapshot(&s, b); err != nil {
		return nil, err
	}
	if len(s.Assets) == 0 {
		return nil, fmt.Errorf("catalog snapshot %s is empty", path)
	}
	return &s, nil
}

// migrateSnapshot upgrades older schemas. A missing version counts as 1.
func migrateSnapshot(s *CatalogSnapshot, raw []byte) error {
	version := 1
	if s.Version != "" {
		v, err := strconv.Atoi(s.Version)
		if err != nil {
			return fmt.Errorf("catalog snapshot version %q: %w", s.Version, err)
		}
		version = v
	}

	// 1 -> 2: version 1 stored the bare /coins/list array under "coins".
	if version < 2 {
		var v1 struct {
			Coins []models.Asset `json:"coins"`
		}
		if err := json.Unmarshal(raw, &v1); err != nil {
			return fmt.Errorf("migrating catalog snapshot: %w", err)
		}
		if len(s.Assets) == 0 {
			s.Assets = v1.Coins
		}
		version = 2
	}
	s.Version = strconv.Itoa(version)
	return nil
}

// SaveSnapshot writes the catalog atomically: temp file, sync, rename.
// Every call writes its own temp file, so concurrent saves never share one.
func SaveSnapshot(path string, assets []models.Asset, savedAt time.Time) error {
	b, err := json.MarshalIndent(CatalogSnapshot{
		Version: strconv.Itoa(SnapshotVersion),
		SavedAt: savedAt.UTC(),
		Assets:  assets,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog snapshot: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpFile := f.Name()
	defer func() {
		f.Close()
		os.Remove(tmpFile) // no-op after a successful rename
	}()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}

	// Close before renaming (required on Windows).
	f.Close()

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
