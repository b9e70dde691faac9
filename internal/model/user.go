package model

import "time"

// User represents a registered account.
//
// Two sign-in paths map onto one users table:
//   - GitHub OAuth: GitHubID holds GitHub's numeric user ID (UNIQUE in the DB,
//     0 when the account was created with a password instead)
//   - Email/password: Email is the login identifier and PasswordHash holds the
//     bcrypt hash (empty for OAuth-only accounts)
//
// We always generate our own internal string ID (xid) so primary keys aren't
// tied to a third party's numbering scheme.
//
// PasswordHash is deliberately excluded from JSON — it must never leave the
// server, not even to the account's owner.
type User struct {
	ID           string    `json:"id"`
	GitHubID     int64     `json:"githubId,omitempty"`
	Login        string    `json:"login"` // display name / GitHub username
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
