package models

import (
	"strings"
	"time"
)

// Roles
const (
	RoleFarmer    = "farmer"
	RoleWarehouse = "warehouse"
	RoleConsumer  = "consumer"
)

// Auth sources
const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// User is the single validated user shape handed out at the session boundary
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Aadhaar   string    `json:"aadhaar,omitempty"`
	District  string    `json:"district,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserMetadata is the loose attribute bag received from sign-up forms and
// from the remote identity provider.
type UserMetadata struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Aadhaar  string `json:"aadhaar,omitempty"`
	District string `json:"district,omitempty"`
}

// Session ties a token to a user
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// NormalizeRole maps an arbitrary role string to a known role, farmer by default
func NormalizeRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case RoleFarmer, RoleWarehouse, RoleConsumer:
		return r
	default:
		return RoleFarmer
	}
}

// NewUser builds a User from an id, an email and loose metadata.
func NewUser(id, email string, meta UserMetadata, createdAt time.Time) *User {
	name := strings.TrimSpace(meta.Name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" && email != "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return &User{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      NormalizeRole(meta.Role),
		Phone:     strings.TrimSpace(meta.Phone),
		Aadhaar:   strings.TrimSpace(meta.Aadhaar),
		District:  strings.TrimSpace(meta.District),
		CreatedAt: createdAt,
	}
}
