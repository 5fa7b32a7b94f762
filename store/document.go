package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrCorruptDocument is returned when persisted bytes cannot be decoded.
var ErrCorruptDocument = errors.New("store: corrupt document")

// User is a persisted account. Password holds the stored form produced by
// the password hasher, never plaintext.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	CreatedAt int64  `json:"createdAt"`
}

// RefreshToken is a server-side record of an issued refresh token.
type RefreshToken struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ResetToken is a server-side record of an issued password reset token.
// Only the digest of the raw token is kept.
type ResetToken struct {
	UserID    string `json:"userId"`
	TokenHash string `json:"tokenHash"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expired reports whether the record's expiry has passed at now (unix seconds).
func (r RefreshToken) Expired(now int64) bool { return now > r.ExpiresAt }

// Expired reports whether the record's expiry has passed at now (unix seconds).
func (r ResetToken) Expired(now int64) bool { return now > r.ExpiresAt }

// Document is the complete persisted state: three collections written and
// read as one unit.
type Document struct {
	Users         []User         `json:"users"`
	RefreshTokens []RefreshToken `json:"refreshTokens"`
	ResetTokens   []ResetToken   `json:"resetTokens"`
}

// NewDocument returns a document with three empty collections.
func NewDocument() *Document {
	return &Document{
		Users:         []User{},
		RefreshTokens: []RefreshToken{},
		ResetTokens:   []ResetToken{},
	}
}

// Decode parses persisted bytes. Empty input decodes to an empty document.
func Decode(data []byte) (*Document, error) {
	doc := NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	doc.normalize()
	return doc, nil
}

// Encode serializes the document as indented JSON.
func (d *Document) Encode() ([]byte, error) {
	d.normalize()
	return json.MarshalIndent(d, "", "  ")
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	return &Document{
		Users:         slices.Clone(d.Users),
		RefreshTokens: slices.Clone(d.RefreshTokens),
		ResetTokens:   slices.Clone(d.ResetTokens),
	}
}

func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.RefreshTokens == nil {
		d.RefreshTokens = []RefreshToken{}
	}
	if d.ResetTokens == nil {
		d.ResetTokens = []ResetToken{}
	}
}

// UserByID returns a pointer into the users collection, or nil.
func (d *Document) UserByID(id string) *User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

// UserByUsername matches the stored (lower-cased) username exactly.
func (d *Document) UserByUsername(username string) *User {
	for i := range d.Users {
		if d.Users[i].Username == username {
			return &d.Users[i]
		}
	}
	return nil
}

// UserByEmail matches the stored (lower-cased) email exactly.
func (d *Document) UserByEmail(email string) *User {
	for i := range d.Users {
		if d.Users[i].Email == email {
			return &d.Users[i]
		}
	}
	return nil
}

// UserByIdentity returns the first user whose username or email equals identity.
func (d *Document) UserByIdentity(identity string) *User {
	for i := range d.Users {
		if d.Users[i].Username == identity || d.Users[i].Email == identity {
			return &d.Users[i]
		}
	}
	return nil
}

// AddUser appends u.
func (d *Document) AddUser(u User) {
	d.Users = append(d.Users, u)
}

// RefreshToken returns the record for token, or nil.
func (d *Document) RefreshToken(token string) *RefreshToken {
	for i := range d.RefreshTokens {
		if d.RefreshTokens[i].Token == token {
			return &d.RefreshTokens[i]
		}
	}
	return nil
}

// AddRefreshToken appends r.
func (d *Document) AddRefreshToken(r RefreshToken) {
	d.RefreshTokens = append(d.RefreshTokens, r)
}

// RemoveRefreshToken deletes every record for token and returns how many
// were removed.
func (d *Document) RemoveRefreshToken(token string) int {
	before := len(d.RefreshTokens)
	d.RefreshTokens = slices.DeleteFunc(d.RefreshTokens, func(r RefreshToken) bool {
		return r.Token == token
	})
	return before - len(d.RefreshTokens)
}

// ResetTokenByHash returns the record whose digest equals hash, or nil.
func (d *Document) ResetTokenByHash(hash string) *ResetToken {
	for i := range d.ResetTokens {
		if d.ResetTokens[i].TokenHash == hash {
			return &d.ResetTokens[i]
		}
	}
	return nil
}

// AddResetToken appends r.
func (d *Document) AddResetToken(r ResetToken) {
	d.ResetTokens = append(d.ResetTokens, r)
}

// RemoveResetTokens deletes every reset record matching pred and returns how
// many were removed.
func (d *Document) RemoveResetTokens(pred func(ResetToken) bool) int {
	before := len(d.ResetTokens)
	d.ResetTokens = slices.DeleteFunc(d.ResetTokens, pred)
	return before - len(d.ResetTokens)
}

// PurgeExpired removes refresh and reset records whose expiry has passed.
func (d *Document) PurgeExpired(now int64) (refresh, reset int) {
	before := len(d.RefreshTokens)
	d.RefreshTokens = slices.DeleteFunc(d.RefreshTokens, func(r RefreshToken) bool {
		return r.Expired(now)
	})
	refresh = before - len(d.RefreshTokens)

	reset = d.RemoveResetTokens(func(r ResetToken) bool {
		return r.Expired(now)
	})
	return refresh, reset
}
