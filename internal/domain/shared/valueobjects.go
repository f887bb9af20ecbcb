package shared

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a player. Supplied by the upstream gateway as a UUID.
type UserID string

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	_, err := uuid.Parse(string(u))
	return err == nil
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", NewDomainError("shared", "NewUserID", ErrUnauthorized, "missing user id")
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", NewDomainError("shared", "NewUserID", ErrUnauthorized, "invalid user id format")
	}
	return UserID(parsed.String()), nil
}

// GameID identifies a mini-game, e.g. "game-01-cardmatch".
type GameID string

var gameIDRegex = regexp.MustCompile(`^game-[0-9]{2}-[a-z0-9-]+$`)

// IsValid checks the game id format.
func (g GameID) IsValid() bool {
	return gameIDRegex.MatchString(string(g))
}

// String returns the string representation.
func (g GameID) String() string {
	return string(g)
}

// NewGameID creates a new GameID with validation.
func NewGameID(id string) (GameID, error) {
	gid := GameID(strings.ToLower(strings.TrimSpace(id)))
	if !gid.IsValid() {
		return "", NewDomainError("shared", "NewGameID", ErrInvalidID, "invalid game id format")
	}
	return gid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Star Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Star boundaries.
const (
	MinStars = 0
	MaxStars = 3
)

// ClampStars forces a star rating into 0..3.
func ClampStars(stars int) int {
	if stars < MinStars {
		return MinStars
	}
	if stars > MaxStars {
		return MaxStars
	}
	return stars
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageLimit normalizes a requested page size.
func PageLimit(requested int) int {
	if requested <= 0 {
		return DefaultPageSize
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
