package store

import (
	"time"

	"github.com/mhalvorsen/fetchd/internal/domain"
)

// The results table caches resolved search results so that queueing from a
// past search does not need another network round trip. An empty cache is
// also the (best-effort) signal that a finished job was a quick download,
// i.e. it was never surfaced as a search result.

func (db *DB) InsertResult(item *domain.ResultItem) error {
	item.CreatedAt = time.Now()
	res, err := db.NamedExec(`INSERT INTO results
		(url, title, author, duration, thumbnail, website, playlist_title,
		 formats, created_at)
		VALUES
		(:url, :title, :author, :duration, :thumbnail, :website,
		 :playlist_title, :formats, :created_at)`, item)
	if err != nil {
		return err
	}
	item.ID, err = res.LastInsertId()
	return err
}

func (db *DB) CountResults() (int, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM results`)
	return count, err
}

func (db *DB) ListResults() ([]*domain.ResultItem, error) {
	var items []*domain.ResultItem
	err := db.Select(&items, `SELECT id, url, title, author, duration,
		thumbnail, website, playlist_title, formats, created_at
		FROM results ORDER BY id ASC`)
	return items, err
}

func (db *DB) ClearResults() error {
	_, err := db.Exec(`DELETE FROM results`)
	return err
}
