package domain

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxTitleLength bounds the title of a listing in runes
const MaxTitleLength = 120

// CategoryAll disables category filtering in catalog queries
const CategoryAll = "All"

// Categories lists the accepted listing categories
var Categories = []string{
	"Sports",
	"Electronics",
	"Food",
	"Fashion",
	"Home",
	"Beauty",
	"Automotive",
}

// Ad represents a promotable listing with its promotional clip
type Ad struct {
	ID           int64               `json:"id"`
	UserID       int64               `json:"userId"`
	Title        string              `json:"title"`
	Category     string              `json:"category"`
	Description  string              `json:"description,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	VideoURL     string              `json:"videoUrl"`
	ThumbnailURL string              `json:"thumbnailUrl"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// AdDraft holds the user supplied fields of a new listing
type AdDraft struct {
	Title        string              `json:"title"`
	Category     string              `json:"category"`
	Description  string              `json:"description,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	VideoURL     string              `json:"videoUrl"`
	ThumbnailURL string              `json:"thumbnailUrl"`
}

// AdFilter narrows a catalog listing. Zero value matches everything.
type AdFilter struct {
	Query    string
	Category string
}

// Normalize trims the draft's free-text fields in place
func (d *AdDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	d.VideoURL = strings.TrimSpace(d.VideoURL)
	d.ThumbnailURL = strings.TrimSpace(d.ThumbnailURL)
}

// Validate checks the draft and returns a *FieldError for the first bad field
func (d AdDraft) Validate() error {
	if d.Title == "" {
		return &FieldError{Field: "title", Message: "is required"}
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return &FieldError{Field: "title", Message: "is too long"}
	}
	if !IsCategory(d.Category) {
		return &FieldError{Field: "category", Message: "is not a known category"}
	}
	if d.Price.Valid && d.Price.Decimal.IsNegative() {
		return &FieldError{Field: "price", Message: "must not be negative"}
	}
	if !isHTTPURL(d.VideoURL) {
		return &FieldError{Field: "videoUrl", Message: "must be an absolute http(s) URL"}
	}
	if !isHTTPURL(d.ThumbnailURL) {
		return &FieldError{Field: "thumbnailUrl", Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// Matches reports whether the ad passes the filter
func (f AdFilter) Matches(ad Ad) bool {
	if f.Category != "" && f.Category != CategoryAll && ad.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	return q == "" || strings.Contains(strings.ToLower(ad.Title), q)
}

// IsCategory reports whether name is one of Categories
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
