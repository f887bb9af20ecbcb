package query

import (
	"context"
	"time"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/progression"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE / GET GAME STARS QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery requests a user's ability profile.
type GetProfileQuery struct {
	UserID string
}

// ProfileDTO is the ability profile; unmeasured dimensions are null.
type ProfileDTO struct {
	UserID    string        `json:"user_id"`
	Stats     ability.Stats `json:"stats"`
	Measured  int           `json:"measured"`
	UpdatedAt *time.Time    `json:"updated_at"`
}

// GetProfileHandler handles GetProfileQuery.
type GetProfileHandler struct {
	profiles ability.ProfileStore
	cache    Cache
	ttl      time.Duration
	metrics  *metrics.Manager
	log      *logger.Logger
}

// NewGetProfileHandler creates a new handler. cache may be nil.
func NewGetProfileHandler(profiles ability.ProfileStore, cache Cache, ttl time.Duration, m *metrics.Manager, log *logger.Logger) *GetProfileHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetProfileHandler{
		profiles: profiles,
		cache:    cache,
		ttl:      ttl,
		metrics:  m,
		log:      log.With(logger.Component("profile")),
	}
}

// Handle executes the query.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*ProfileDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	userID := uid.String()
	key := UserCacheKey(userID, "profile")

	if h.cache != nil {
		var cached ProfileDTO
		hit, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			h.log.Warn("cache read failed", logger.UserID(userID), logger.Err(err))
		}
		h.metrics.RecordCacheLookup("profile", hit)
		if hit {
			return &cached, nil
		}
	}

	dto := &ProfileDTO{UserID: userID}
	profile, err := h.profiles.FindByUser(ctx, userID)
	switch {
	case err != nil && !shared.IsNotFound(err):
		return nil, shared.PersistenceError("ability", "FindByUser", err)
	case profile != nil:
		dto.Stats = profile.Stats
		dto.Measured = profile.Stats.Measured()
		updated := profile.UpdatedAt
		dto.UpdatedAt = &updated
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, dto, h.ttl); err != nil {
			h.log.Warn("cache write failed", logger.UserID(userID), logger.Err(err))
		}
	}

	return dto, nil
}

// GetGameStarsQuery requests the per-level stars of one game.
type GetGameStarsQuery struct {
	UserID string
	GameID string
}

// GameStarsDTO maps "level_N_stars" to the stored rating.
type GameStarsDTO struct {
	GameID       string         `json:"game_id"`
	Title        string         `json:"title"`
	Stars        map[string]int `json:"stars"`
	TotalStars   int            `json:"total_stars"`
	LevelsPlayed int            `json:"levels_played"`
}

// GetGameStarsHandler handles GetGameStarsQuery.
type GetGameStarsHandler struct {
	stars progression.StarRepository
}

// NewGetGameStarsHandler creates a new handler.
func NewGetGameStarsHandler(stars progression.StarRepository) *GetGameStarsHandler {
	return &GetGameStarsHandler{stars: stars}
}

// Handle executes the query.
func (h *GetGameStarsHandler) Handle(ctx context.Context, q GetGameStarsQuery) (*GameStarsDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	g, err := game.Get(q.GameID)
	if err != nil {
		return nil, err
	}

	levels, err := h.stars.ListByGame(ctx, uid.String(), g.ID)
	if err != nil {
		return nil, shared.PersistenceError("progression", "ListByGame", err)
	}

	return &GameStarsDTO{
		GameID:       g.ID,
		Title:        g.Title,
		Stars:        progression.StarMap(levels),
		TotalStars:   progression.TotalStars(levels),
		LevelsPlayed: len(levels),
	}, nil
}
