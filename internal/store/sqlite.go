package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"codeberg.org/snonux/pinphotos/internal/errs"
	"codeberg.org/snonux/pinphotos/internal/geo"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pins (
		id         TEXT PRIMARY KEY,
		latitude   REAL NOT NULL,
		longitude  REAL NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS photos (
		id         TEXT PRIMARY KEY,
		pin_id     TEXT NOT NULL REFERENCES pins(id) ON DELETE CASCADE,
		url        TEXT NOT NULL CHECK (url <> ''),
		image      BLOB,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_pin_id ON photos(pin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pins_location ON pins(latitude, longitude)`,
}

// SQLiteStore implements Store on a single SQLite database file
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and if needed creates) the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	// the path is a URI component; '?' or '#' in a file name must not end it
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", (&url.URL{Path: path}).EscapedPath())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// One connection serializes writers, so every mutation of a record is
	// ordered with respect to every other.
	db.SetMaxOpenConns(1)

	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreatePin(ctx context.Context, latitude, longitude float64) (*Pin, error) {
	if err := (geo.Point{Latitude: latitude, Longitude: longitude}).Validate(); err != nil {
		return nil, fmt.Errorf("invalid pin: %w", err)
	}

	pin := &Pin{
		ID:        uuid.NewString(),
		Latitude:  latitude,
		Longitude: longitude,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pins (id, latitude, longitude, created_at) VALUES (?, ?, ?, ?)`,
		pin.ID, pin.Latitude, pin.Longitude, pin.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert pin: %w", err)
	}
	return pin, nil
}

func (s *SQLiteStore) GetPin(ctx context.Context, id string) (*Pin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, latitude, longitude, created_at FROM pins WHERE id = ?`, id)
	pin, err := scanPin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound(fmt.Sprintf("pin %s not found", id))
	}
	return pin, err
}

// FindPinAt returns the first pin stored at exactly the given coordinate
func (s *SQLiteStore) FindPinAt(ctx context.Context, latitude, longitude float64) (*Pin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, latitude, longitude, created_at FROM pins
		 WHERE latitude = ? AND longitude = ? ORDER BY created_at LIMIT 1`, latitude, longitude)
	pin, err := scanPin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound(fmt.Sprintf("no pin at %v,%v", latitude, longitude))
	}
	return pin, err
}

func (s *SQLiteStore) ListPins(ctx context.Context) ([]*Pin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, latitude, longitude, created_at FROM pins ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pins: %w", err)
	}
	defer rows.Close()

	pins := make([]*Pin, 0)
	for rows.Next() {
		pin, err := scanPin(rows)
		if err != nil {
			return nil, err
		}
		pins = append(pins, pin)
	}
	return pins, rows.Err()
}

// DeletePin removes the pin; its photos go with it in the same statement via ON DELETE CASCADE
func (s *SQLiteStore) DeletePin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(fmt.Sprintf("pin %s not found", id))
	}
	return nil
}

func (s *SQLiteStore) CreatePhotos(ctx context.Context, pinID string, urls []string) ([]*Photo, error) {
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("photo url must not be empty")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM pins WHERE id = ?`, pinID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound(fmt.Sprintf("pin %s not found", pinID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up pin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO photos (id, pin_id, url, image, created_at) VALUES (?, ?, ?, NULL, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	photos := make([]*Photo, 0, len(urls))
	for _, u := range urls {
		photo := &Photo{ID: uuid.NewString(), PinID: pinID, URL: u, CreatedAt: now}
		if _, err := stmt.ExecContext(ctx, photo.ID, photo.PinID, photo.URL, now.UnixNano()); err != nil {
			return nil, fmt.Errorf("failed to insert photo: %w", err)
		}
		photos = append(photos, photo)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit photos: %w", err)
	}
	return photos, nil
}

func (s *SQLiteStore) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pin_id, url, image, created_at FROM photos WHERE id = ?`, id)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound(fmt.Sprintf("photo %s not found", id))
	}
	return photo, err
}

func (s *SQLiteStore) ListPhotos(ctx context.Context, filter PhotoFilter) ([]*Photo, error) {
	query := `SELECT id, pin_id, url, image, created_at FROM photos`
	var where []string
	var args []any
	if filter.PinID != "" {
		where = append(where, "pin_id = ?")
		args = append(args, filter.PinID)
	}
	if filter.PendingOnly {
		where = append(where, "image IS NULL")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	photos := make([]*Photo, 0)
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func (s *SQLiteStore) AttachImage(ctx context.Context, photoID string, data []byte) (bool, error) {
	if data == nil {
		data = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE photos SET image = ? WHERE id = ? AND image IS NULL`, data, photoID)
	if err != nil {
		return false, fmt.Errorf("failed to attach image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, tx.Commit()
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM photos WHERE id = ?`, photoID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, errs.NotFound(fmt.Sprintf("photo %s not found", photoID))
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up photo: %w", err)
	}
	return false, nil
}

func (s *SQLiteStore) DeletePhotos(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Join(lo.Map(ids, func(string, int) string { return "?" }), ",")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM photos WHERE id IN (`+placeholders+`)`, lo.ToAnySlice(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete photos: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) DeletePinPhotos(ctx context.Context, pinID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE pin_id = ?`, pinID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete photos of pin: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPin(row scanner) (*Pin, error) {
	var pin Pin
	var created int64
	if err := row.Scan(&pin.ID, &pin.Latitude, &pin.Longitude, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pin: %w", err)
	}
	pin.CreatedAt = time.Unix(0, created).UTC()
	return &pin, nil
}

func scanPhoto(row scanner) (*Photo, error) {
	var photo Photo
	var created int64
	var image []byte
	if err := row.Scan(&photo.ID, &photo.PinID, &photo.URL, &image, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan photo: %w", err)
	}
	photo.Image = image
	photo.CreatedAt = time.Unix(0, created).UTC()
	return &photo, nil
}
