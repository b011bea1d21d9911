// Package domain defines core business entities
package domain

import (
	"time"
)

// User represents an account that watches ads and posts listings
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"` // member, admin
	CreatedAt    time.Time `json:"createdAt"`
}

// ViewRecord is durable proof that a user validly watched a specific ad
type ViewRecord struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	AdID     int64     `json:"adId"`
	ViewedAt time.Time `json:"viewedAt"`
	Code     string    `json:"verificationCode"`
	Valid    bool      `json:"isValid"`
}

// QuotaCounter is the derived validated-view count of a user since the last reset
type QuotaCounter struct {
	UserID      int64     `json:"userId"`
	Count       int       `json:"count"`
	Required    int       `json:"required"`
	LastResetAt time.Time `json:"lastResetAt"`
}

// Met reports whether the counter has reached the required number of views
func (q QuotaCounter) Met() bool {
	return q.Required > 0 && q.Count >= q.Required
}

// Remaining returns how many more validated views are needed
func (q QuotaCounter) Remaining() int {
	if q.Count >= q.Required {
		return 0
	}
	return q.Required - q.Count
}

// User roles
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)
