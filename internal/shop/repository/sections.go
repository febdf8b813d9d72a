package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/doorshop/core/bootstrap"
	"github.com/m3rciful/doorshop/core/telegram/format"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// DefaultSections are inserted at startup when missing.
var DefaultSections = []model.Section{
	{Key: model.SectionServices, Title: "🛠️ Услуги", Content: `🛠️ Раздел "Услуги" в разработке`},
	{Key: model.SectionInfo, Title: "ℹ️ Информация", Content: `ℹ️ Раздел "Информация" в разработке`},
	{Key: model.SectionConsultation, Title: "💬 Консультация", Content: `💬 Раздел "Консультация" в разработке`},
}

// SectionSeeder inserts DefaultSections without touching edited rows.
func SectionSeeder() bootstrap.Seeder {
	return bootstrap.SeederFunc{
		Label: "main_menu_sections",
		Fn: func(ctx context.Context, db *sqlx.DB) error {
			for _, s := range DefaultSections {
				if _, err := db.ExecContext(ctx, `
					INSERT INTO main_menu_sections (section_key, title, content)
					VALUES ($1, $2, $3) ON CONFLICT (section_key) DO NOTHING`,
					s.Key, s.Title, s.Content); err != nil {
					return classify(err, "seed section "+s.Key)
				}
			}
			return nil
		},
	}
}

// Section loads a section by key.
func (r *Repository) Section(ctx context.Context, key string) (model.Section, error) {
	var s model.Section
	err := r.db.GetContext(ctx, &s, `
		SELECT id, section_key, title, content, photo_path, file_id
		FROM main_menu_sections WHERE section_key = $1`, key)
	return s, classify(err, "get section")
}

// UpdateSectionText replaces a section's text.
func (r *Repository) UpdateSectionText(ctx context.Context, key, content string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE main_menu_sections SET content = $1 WHERE section_key = $2`, content, key)
	if err != nil {
		return classify(err, "update section text")
	}
	return expectOne(res, "update section text")
}

// SetSectionPhoto stores a new photo and returns the path of the one it replaced.
func (r *Repository) SetSectionPhoto(ctx context.Context, key, path, fileID string) (*string, error) {
	var old *string
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &old,
			`SELECT photo_path FROM main_menu_sections WHERE section_key = $1 FOR UPDATE`, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE main_menu_sections SET photo_path = $1, file_id = $2 WHERE section_key = $3`,
			format.StringPtr(path), format.StringPtr(fileID), key)
		return err
	})
	return old, classify(err, "set section photo")
}

// ClearSectionPhoto drops a section's photo and returns its previous path,
// nil when there was none.
func (r *Repository) ClearSectionPhoto(ctx context.Context, key string) (*string, error) {
	var old *string
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &old,
			`SELECT photo_path FROM main_menu_sections WHERE section_key = $1 FOR UPDATE`, key); err != nil {
			return err
		}
		if old == nil {
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE main_menu_sections SET photo_path = NULL, file_id = NULL WHERE section_key = $1`, key)
		return err
	})
	return old, classify(err, "clear section photo")
}
