package store

import (
	"context"
	"errors"
	"time"

	"clue-duel-system/models"
)

// ErrNotFound normalizes "no such record" across backends.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a create hits an existing record, e.g. two
// peers racing to create the same round number.
var ErrDuplicate = errors.New("record already exists")

// Snapshot is what subscribers see: the room plus its current round record
// (nil while the round initializer has not run yet).
type Snapshot struct {
	Room  models.Room
	Round *models.Round
}

// Tx is the view inside one atomic read-modify-write transaction. Reads
// observe the transaction's own writes; nothing is visible outside until the
// transaction function returns nil.
type Tx interface {
	Room(id string) (*models.Room, error)
	Round(roomID string, number int) (*models.Round, error)
	Profile(playerID string) (*models.PlayerProfile, error)
	History(pairKey string) (*models.BattleHistory, error)

	SaveRoom(room *models.Room) error
	CreateRound(round *models.Round) error
	SaveRound(round *models.Round) error
	SaveProfile(profile *models.PlayerProfile) error
	SaveHistory(history *models.BattleHistory) error
}

// Store is the shared transactional state both duel clients coordinate
// through. Transact serializes transactions touching the same room, so
// guard fields re-read inside the transaction body are authoritative.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRound(ctx context.Context, roomID string, number int) (*models.Round, error)
	GetProfile(ctx context.Context, playerID string) (*models.PlayerProfile, error)
	GetHistory(ctx context.Context, pairKey string) (*models.BattleHistory, error)

	// TopProfiles is the leaderboard read: period wins desc, then wins desc.
	TopProfiles(ctx context.Context, limit int) ([]models.PlayerProfile, error)

	// InactiveRooms lists in-progress rooms whose last action predates cutoff.
	InactiveRooms(ctx context.Context, cutoff time.Time) ([]models.Room, error)

	// Transact runs fn atomically against the room's records. fn must be
	// idempotent: both peers may run the same transaction concurrently and
	// the body's guard checks decide which execution has an effect.
	Transact(ctx context.Context, roomID string, fn func(Tx) error) error

	// Watch returns a push stream of room snapshots. The returned cancel
	// func releases the subscription; the channel closes afterwards.
	Watch(ctx context.Context, roomID string) (<-chan Snapshot, func())
}
