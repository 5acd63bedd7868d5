package models

import "time"

// Document is a reference link shown next to the calculators (tariff sheets,
// VAT circulars, internal procedures). Titles are kept in both languages.
type Document struct {
	ID        string    `json:"id" yaml:"id"`                   // Stable identifier; generated when empty
	Category  string    `json:"category" yaml:"category"`       // Free-form grouping, e.g. "tariffs"
	TitleAR   string    `json:"titleAr" yaml:"title_ar"`        // Arabic title
	TitleEN   string    `json:"titleEn" yaml:"title_en"`        // English title
	URL       string    `json:"url" yaml:"url"`                 // Absolute http(s) link
	Pinned    bool      `json:"pinned,omitempty" yaml:"pinned"` // Listed first
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`             // Last write through the store
}
