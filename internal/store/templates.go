package store

import (
	"github.com/mhalvorsen/fetchd/internal/domain"
)

func (db *DB) ListCommandTemplates() ([]*domain.CommandTemplate, error) {
	var templates []*domain.CommandTemplate
	err := db.Select(&templates, `SELECT id, title, content FROM command_templates ORDER BY id ASC`)
	return templates, err
}

func (db *DB) InsertCommandTemplate(t *domain.CommandTemplate) error {
	res, err := db.NamedExec(`INSERT INTO command_templates (title, content)
		VALUES (:title, :content)`, t)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (db *DB) DeleteCommandTemplate(id int64) error {
	_, err := db.Exec(`DELETE FROM command_templates WHERE id = ?`, id)
	return err
}
