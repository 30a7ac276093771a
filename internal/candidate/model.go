package candidate

import "time"

// Category groups candidates that are compared against each other.
type Category string

const (
	CategoryTTS            Category = "tts"
	CategoryConversational Category = "conversational"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryTTS, CategoryConversational}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTTS, CategoryConversational:
		return true
	}
	return false
}

// DefaultRating is the rating every candidate starts from.
const DefaultRating = 1500.0

// Candidate is a competing generation backend.
// Rating and the counters are only written by the rating engine.
type Candidate struct {
	ID         string    `gorm:"primaryKey;size:100" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Category   Category  `gorm:"size:20;not null;index" json:"category"`
	Rating     float64   `gorm:"not null" json:"rating"`
	WinCount   int       `gorm:"not null" json:"winCount"`
	MatchCount int       `gorm:"not null" json:"matchCount"`
	Active     bool      `gorm:"not null" json:"active"`
	Open       bool      `gorm:"not null" json:"open"`
	URL        string    `gorm:"size:255" json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
