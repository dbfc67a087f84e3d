package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tubebeam/tubebeam/internal/model"
)

// SQLiteStore is the media cache backed by a local sqlite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the media_cache table if missing
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS media_cache (
	media_id TEXT PRIMARY KEY,
	file_ref TEXT NOT NULL,
	message_ref TEXT NOT NULL,
	chat_ref TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	downloads INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);`)
	return err
}

// FindByMediaID returns the cache record for a media id, or nil when none
// exists
func (s *SQLiteStore) FindByMediaID(ctx context.Context, mediaID string) (*model.CacheRecord, error) {
	record := &model.CacheRecord{}
	err := s.db.QueryRowContext(ctx, `
SELECT media_id, file_ref, message_ref, chat_ref, title, downloads, created_at
FROM media_cache WHERE media_id = ?`, mediaID).Scan(
		&record.MediaID, &record.FileRef, &record.MessageRef,
		&record.ChatRef, &record.Title, &record.Downloads, &record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Create inserts the record unless a row for the media id already exists,
// and returns the row that won. Losers of a concurrent create observe the
// winner's record.
func (s *SQLiteStore) Create(ctx context.Context, record *model.CacheRecord) (*model.CacheRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO media_cache (media_id, file_ref, message_ref, chat_ref, title, downloads, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?)
ON CONFLICT(media_id) DO NOTHING;`,
		record.MediaID, record.FileRef, record.MessageRef,
		record.ChatRef, record.Title, record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s.FindByMediaID(ctx, record.MediaID)
}

// IncrementDownload bumps the download counter for a media id
func (s *SQLiteStore) IncrementDownload(ctx context.Context, mediaID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE media_cache SET downloads = downloads + 1 WHERE media_id = ?`, mediaID)
	return err
}

// CountDownloads returns the download counter for a media id
func (s *SQLiteStore) CountDownloads(ctx context.Context, mediaID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
SELECT downloads FROM media_cache WHERE media_id = ?`, mediaID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
