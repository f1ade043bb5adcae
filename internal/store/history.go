package store

import (
	"database/sql"

	"github.com/mhalvorsen/fetchd/internal/domain"
)

// InsertHistory appends one finished download. History is append-only; rows
// are never updated.
func (db *DB) InsertHistory(entry *domain.HistoryEntry) error {
	res, err := db.NamedExec(`INSERT INTO history
		(url, title, author, duration, thumbnail, type, downloaded_at, path,
		 website, format, job_id)
		VALUES
		(:url, :title, :author, :duration, :thumbnail, :type, :downloaded_at,
		 :path, :website, :format, :job_id)`, entry)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

// GetHistoryEntry returns (nil, nil) when no such row exists.
func (db *DB) GetHistoryEntry(id int64) (*domain.HistoryEntry, error) {
	entry := &domain.HistoryEntry{}
	err := db.Get(entry, `SELECT id, url, title, author, duration, thumbnail,
		type, downloaded_at, path, website, format, job_id
		FROM history WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (db *DB) ListHistory(limit int) ([]*domain.HistoryEntry, error) {
	var entries []*domain.HistoryEntry
	err := db.Select(&entries, `SELECT id, url, title, author, duration,
		thumbnail, type, downloaded_at, path, website, format, job_id
		FROM history ORDER BY downloaded_at DESC LIMIT ?`, limit)
	return entries, err
}
