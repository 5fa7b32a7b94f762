package credstore

import "time"

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// PublicUser is the externally visible subset of a user record.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserProfile is PublicUser plus the creation time in unix seconds.
type UserProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
}

// AuthResult is returned by Authenticate.
type AuthResult struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         PublicUser `json:"user"`
}

// RefreshResult is returned by RefreshAccessToken.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
}

// ResetTokenResult carries a raw reset token. It must reach the user out of
// band and is never persisted.
type ResetTokenResult struct {
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// CleanupResult counts the records one CleanupExpired sweep removed.
type CleanupResult struct {
	RefreshTokensRemoved int `json:"refreshTokensRemoved"`
	ResetTokensRemoved   int `json:"resetTokensRemoved"`
}
