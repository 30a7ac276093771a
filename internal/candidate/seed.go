package candidate

import (
	"context"
	"errors"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"gorm.io/gorm"
)

// SeedEntry describes a catalog candidate. A nil Active keeps the stored
// flag of an existing candidate and defaults to true for new ones.
type SeedEntry struct {
	ID       string
	Name     string
	Category Category
	Open     bool
	Active   *bool
	URL      string
}

func inactive() *bool {
	b := false
	return &b
}

// SeedCatalog is the built-in candidate catalog.
var SeedCatalog = []SeedEntry{
	{ID: "eleven-multilingual-v2", Name: "Eleven Multilingual v2", Category: CategoryTTS, URL: "https://elevenlabs.io/"},
	{ID: "playht-2.0", Name: "PlayHT 2.0", Category: CategoryTTS, URL: "https://play.ht/"},
	{ID: "playht-3.0-mini", Name: "PlayHT 3.0 Mini", Category: CategoryTTS, Active: inactive(), URL: "https://play.ht/"},
	{ID: "styletts2", Name: "StyleTTS 2", Category: CategoryTTS, Open: true, URL: "https://github.com/yl4579/StyleTTS2"},
	{ID: "kokoro-v1", Name: "Kokoro v1.0", Category: CategoryTTS, Open: true, URL: "https://huggingface.co/hexgrad/Kokoro-82M"},
	{ID: "cosyvoice-2.0", Name: "CosyVoice 2.0", Category: CategoryTTS, Open: true, URL: "https://github.com/FunAudioLLM/CosyVoice"},
	{ID: "papla-p1", Name: "Papla P1", Category: CategoryTTS, URL: "https://papla.media/"},
	{ID: "hume-octave", Name: "Hume Octave", Category: CategoryTTS, URL: "https://hume.ai/"},
	{ID: "csm-1b", Name: "CSM 1B", Category: CategoryConversational, Open: true, URL: "https://huggingface.co/sesame/csm-1b"},
	{ID: "playdialog-1.0", Name: "PlayDialog 1.0", Category: CategoryConversational, URL: "https://play.ht/"},
}

// Seed inserts missing catalog entries and refreshes metadata of existing
// ones without touching their rating state. It returns the number created.
func (r *Repository) Seed(ctx context.Context, entries []SeedEntry) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if e.ID == "" || !e.Category.Valid() {
				return apperr.InvalidInput("invalid seed entry %q (%s)", e.ID, e.Category)
			}

			var existing Candidate
			err := tx.First(&existing, "id = ?", e.ID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c := Candidate{
					ID:       e.ID,
					Name:     e.Name,
					Category: e.Category,
					Rating:   DefaultRating,
					Active:   e.Active == nil || *e.Active,
					Open:     e.Open,
					URL:      e.URL,
				}
				if err := tx.Create(&c).Error; err != nil {
					return err
				}
				created++
				continue
			}
			if err != nil {
				return err
			}

			updates := map[string]any{"name": e.Name, "open": e.Open}
			if e.Active != nil {
				updates["active"] = *e.Active
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvalidInput {
			return 0, err
		}
		return 0, apperr.Storage(err, "seed candidates")
	}
	return created, nil
}
