package domain

import (
	"strings"
	"time"
)

type Address struct {
	Type   string `json:"type" dynamodbav:"type" validate:"omitempty,max=20"`
	Street string `json:"street_address" dynamodbav:"street" validate:"max=255"`
	City   string `json:"city" dynamodbav:"city" validate:"max=100"`
	State  string `json:"state" dynamodbav:"state" validate:"max=100"`
	Zip    string `json:"zip_code" dynamodbav:"zip" validate:"max=20"`
}

type Profile struct {
	DisplayName string    `json:"name" dynamodbav:"display_name"`
	Phone       string    `json:"phone" dynamodbav:"phone"`
	AvatarKey   string    `json:"avatar_key,omitempty" dynamodbav:"avatar_key"`
	Addresses   []Address `json:"addresses" dynamodbav:"addresses"`
}

type Account struct {
	AccountID      string                     `json:"id" dynamodbav:"account_id"`
	Email          string                     `json:"email" dynamodbav:"email"`
	CredentialHash string                     `json:"-" dynamodbav:"credential_hash"`
	Verified       bool                       `json:"verified" dynamodbav:"verified"`
	Active         bool                       `json:"active" dynamodbav:"active"`
	Role           Role                       `json:"role" dynamodbav:"role"`
	Profile        Profile                    `json:"profile" dynamodbav:"profile"`
	Secrets        map[Purpose]*OneTimeSecret `json:"-" dynamodbav:"secrets"`
	LastLoginAt    *time.Time                 `json:"last_login,omitempty" dynamodbav:"last_login_at,omitempty"`
	CreatedAt      time.Time                  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time                  `json:"updated" dynamodbav:"updated_at"`
}

// IsActiveAdmin reports whether the account counts towards the last-admin guard.
func (a *Account) IsActiveAdmin() bool {
	return a.Role == RoleAdmin && a.Active
}

// AccountPatch lists account-level fields to overwrite in one write.
// Nil fields are left untouched.
type AccountPatch struct {
	Verified       *bool
	Active         *bool
	Role           *Role
	CredentialHash *string
	LastLoginAt    *time.Time
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Verified == nil && p.Active == nil && p.Role == nil && p.CredentialHash == nil && p.LastLoginAt == nil
}

// Apply copies the set fields of p onto a.
func (p AccountPatch) Apply(a *Account) {
	if p.Verified != nil {
		a.Verified = *p.Verified
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.CredentialHash != nil {
		a.CredentialHash = *p.CredentialHash
	}
	if p.LastLoginAt != nil {
		t := *p.LastLoginAt
		a.LastLoginAt = &t
	}
}

// ProfilePatch carries the profile fields a caller explicitly sent.
type ProfilePatch struct {
	DisplayName Optional[string]
	Phone       Optional[string]
	AvatarKey   Optional[string]
	Addresses   Optional[[]Address]
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return !p.DisplayName.Set && !p.Phone.Set && !p.AvatarKey.Set && !p.Addresses.Set
}

// Apply copies the present fields of p onto prof. A present-but-null address
// list clears the addresses.
func (p ProfilePatch) Apply(prof *Profile) {
	if p.DisplayName.Set {
		prof.DisplayName = p.DisplayName.Value
	}
	if p.Phone.Set {
		prof.Phone = p.Phone.Value
	}
	if p.AvatarKey.Set {
		prof.AvatarKey = p.AvatarKey.Value
	}
	if p.Addresses.Set {
		prof.Addresses = append([]Address{}, p.Addresses.Value...)
	}
}

// ListFilter narrows admin account listings. Nil fields match everything.
type ListFilter struct {
	Role     *Role
	Verified *bool
}

// Match reports whether a satisfies the filter.
func (f ListFilter) Match(a *Account) bool {
	if f.Role != nil && a.Role != *f.Role {
		return false
	}
	if f.Verified != nil && a.Verified != *f.Verified {
		return false
	}
	return true
}

// NormalizeEmail performs case-insensitive canonicalisation.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
