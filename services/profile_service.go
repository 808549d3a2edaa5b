// clue-duel-system/services/profile_service.go
package services

import (
	"context"
	"errors"

	"clue-duel-system/models"
	"clue-duel-system/store"
)

// ProfileService serves the read side of player stats: profiles, the
// weekly leaderboard, and head-to-head records.
type ProfileService struct {
	Store store.Store
}

func NewProfileService(s store.Store) *ProfileService {
	return &ProfileService{Store: s}
}

// Profile returns the player's stats, or a zero-value profile for players
// who have never finished a match.
func (s *ProfileService) Profile(ctx context.Context, playerID string) (*models.PlayerProfile, error) {
	profile, err := s.Store.GetProfile(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.PlayerProfile{PlayerID: playerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Leaderboard lists the top profiles by total wins.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]models.PlayerProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Store.TopProfiles(ctx, limit)
}

// HeadToHead is a pair's record seen from one player's side.
type HeadToHead struct {
	PlayerID     string `json:"player_id"`
	OpponentID   string `json:"opponent_id"`
	Wins         int64  `json:"wins"`
	OpponentWins int64  `json:"opponent_wins"`
	TotalMatches int64  `json:"total_matches"`
}

// HeadToHead returns the pair record between two players, zeroed when they
// have never met.
func (s *ProfileService) HeadToHead(ctx context.Context, playerID, opponentID string) (*HeadToHead, error) {
	out := &HeadToHead{PlayerID: playerID, OpponentID: opponentID}
	key, _, _ := models.PairKey(playerID, opponentID)
	history, err := s.Store.GetHistory(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Wins = history.WinsOf(playerID)
	out.OpponentWins = history.WinsOf(opponentID)
	out.TotalMatches = history.TotalMatches
	return out, nil
}
