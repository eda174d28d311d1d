package model

import "strings"

// Role is one of the four fixed household roles a member picks at signup.
type Role string

const (
	RoleMother   Role = "Mother"
	RoleFather   Role = "Father"
	RoleSon      Role = "Son"
	RoleDaughter Role = "Daughter"
)

// Valid reports whether r is one of the known household roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMother, RoleFather, RoleSon, RoleDaughter:
		return true
	}
	return false
}

// CanConfirm reports whether the role holds the family's confirmation
// authority, i.e. its picks become ConfirmedMeals instead of selections.
func (r Role) CanConfirm() bool { return r == RoleMother }

// IsParent reports whether the role may manage the pantry inventory.
func (r Role) IsParent() bool { return r == RoleMother || r == RoleFather }

// Language is the UI language preference stored on a profile.
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool { return l == LangEnglish || l == LangArabic }

// Profile mirrors the `profiles` table. One row per authenticated user,
// created when signup is completed. FamilyCode is the tenancy key for every
// other entity and never changes once set.
//
// Fields:
//  ID         – identity id issued by the auth layer (users.id).
//  Name       – display name.
//  Role       – household role.
//  AvatarURL  – avatar reference.
//  Language   – UI language preference (may be empty).
//  FamilyCode – shared family identifier.
type Profile struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       Role     `json:"role"`
	AvatarURL  string   `json:"avatar_url"`
	Language   Language `json:"language,omitempty"`
	FamilyCode string   `json:"family_code"`
}

// Snapshot returns the denormalized display copy stored on selections and
// chat messages.
func (p Profile) Snapshot() *ProfileSnapshot {
	return &ProfileSnapshot{Name: p.Name, AvatarURL: p.AvatarURL}
}

// ProfileSnapshot is copied onto rows at write time. It is not kept in sync
// with later profile edits and must never be used for authorization.
type ProfileSnapshot struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// NormalizeFamilyCode lower-cases and trims a family code the way signup
// stores it.
func NormalizeFamilyCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// DefaultAvatar returns the generated avatar used when a member does not
// bring one from their OAuth provider.
func DefaultAvatar(role Role) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + string(role)
}
