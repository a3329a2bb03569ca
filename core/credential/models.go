package credential

import "time"

// Credential is a bot token and the handle (bot username) it authenticates as.
type Credential struct {
	ID        string    `json:"id" db:"id"`
	Token     string    `json:"-" db:"token"`
	Handle    string    `json:"handle" db:"handle"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MaskedToken keeps the bot id part of the token and hides the secret.
func (c Credential) MaskedToken() string {
	const keep = 4
	for i, r := range c.Token {
		if r == ':' {
			return c.Token[:i+1] + "****"
		}
	}
	if len(c.Token) <= keep {
		return "****"
	}
	return c.Token[:keep] + "****"
}
