package model

import "time"

// User represents an auth identity as stored in the `users` table. It is
// separate from Profile: a user exists as soon as they sign up, a profile
// only once they have joined a family.
//
// Fields:
//  ID            – primary key (UUID string), also the profile id.
//  Email         – unique, normalized email address.
//  PasswordHash  – bcrypt hash; empty for OAuth-only accounts.
//  OAuthProvider – provider name for OAuth accounts (e.g. "google").
//  OAuthSubject  – provider subject for OAuth accounts.
//  IsActive      – whether the account may sign in.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            string    // users.id
	Email         string    // users.email
	PasswordHash  string    // users.password_hash
	OAuthProvider string    // users.oauth_provider
	OAuthSubject  string    // users.oauth_subject
	IsActive      bool      // users.is_active
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored, only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
