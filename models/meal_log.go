package models

import (
    "gorm.io/gorm"
)

// One MealLog per successful submission. Rows are insert-only; the raw model
// payload and image URLs are kept for provenance.
type MealLog struct {
    gorm.Model
    UserID      uint   `gorm:"index;not null"` // FK → users.id
    Description string
    Calories    int
    Protein     int
    Carbs       int
    Fat         int
    Confidence  float64
    ImageURLs   string `gorm:"type:text"` // JSON array of stored references
    Transcript  string `gorm:"type:text"`
    RawResponse string `gorm:"type:text"` // unedited inference output
    Warnings    string // semicolon-separated safety warnings
}
