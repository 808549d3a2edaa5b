package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clue-duel-system/models"
)

// PostgresStore backs the shared state with Postgres through GORM. Every
// Transact takes a FOR UPDATE lock on the room row first, so two peers
// racing through the same guard re-reads are serialized by the database.
type PostgresStore struct {
	DB *gorm.DB

	// PollInterval drives Watch, which is implemented as short-interval
	// snapshot polling (push fan-out needs no broker this way; watchers
	// recompute from the latest snapshot per the coordination model).
	PollInterval time.Duration
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{DB: db, PollInterval: 500 * time.Millisecond}
}

// AutoMigrate creates the persisted record tables.
func (s *PostgresStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Room{},
		&models.Round{},
		&models.PlayerProfile{},
		&models.BattleHistory{},
	)
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.Room) error {
	err := s.DB.WithContext(ctx).Create(room).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, normalize(err)
	}
	return &room, nil
}

func (s *PostgresStore) GetRound(ctx context.Context, roomID string, number int) (*models.Round, error) {
	var round models.Round
	err := s.DB.WithContext(ctx).
		First(&round, "room_id = ? AND number = ?", roomID, number).Error
	if err != nil {
		return nil, normalize(err)
	}
	return &round, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, playerID string) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	if err := s.DB.WithContext(ctx).First(&profile, "player_id = ?", playerID).Error; err != nil {
		return nil, normalize(err)
	}
	return &profile, nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, pairKey string) (*models.BattleHistory, error) {
	var history models.BattleHistory
	if err := s.DB.WithContext(ctx).First(&history, "pair_key = ?", pairKey).Error; err != nil {
		return nil, normalize(err)
	}
	return &history, nil
}

func (s *PostgresStore) TopProfiles(ctx context.Context, limit int) ([]models.PlayerProfile, error) {
	var profiles []models.PlayerProfile
	err := s.DB.WithContext(ctx).
		Order("period_wins DESC, wins DESC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func (s *PostgresStore) InactiveRooms(ctx context.Context, cutoff time.Time) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("status = ? AND last_action_at < ?", models.RoomStatusInProgress, cutoff).
		Find(&rooms).Error
	return rooms, err
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) Room(id string) (*models.Room, error) {
	var room models.Room
	if err := t.tx.First(&room, "id = ?", id).Error; err != nil {
		return nil, normalize(err)
	}
	return &room, nil
}

func (t *gormTx) Round(roomID string, number int) (*models.Round, error) {
	var round models.Round
	err := t.tx.First(&round, "room_id = ? AND number = ?", roomID, number).Error
	if err != nil {
		return nil, normalize(err)
	}
	return &round, nil
}

func (t *gormTx) Profile(playerID string) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	if err := t.tx.First(&profile, "player_id = ?", playerID).Error; err != nil {
		return nil, normalize(err)
	}
	return &profile, nil
}

func (t *gormTx) History(pairKey string) (*models.BattleHistory, error) {
	var history models.BattleHistory
	if err := t.tx.First(&history, "pair_key = ?", pairKey).Error; err != nil {
		return nil, normalize(err)
	}
	return &history, nil
}

func (t *gormTx) SaveRoom(room *models.Room) error {
	return t.tx.Save(room).Error
}

func (t *gormTx) CreateRound(round *models.Round) error {
	if err := t.tx.Create(round).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (t *gormTx) SaveRound(round *models.Round) error {
	return t.tx.Save(round).Error
}

func (t *gormTx) SaveProfile(profile *models.PlayerProfile) error {
	return t.tx.Save(profile).Error
}

func (t *gormTx) SaveHistory(history *models.BattleHistory) error {
	return t.tx.Save(history).Error
}

func (s *PostgresStore) Transact(ctx context.Context, roomID string, fn func(Tx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the room row first so concurrent transactions against the
		// same room serialize and their guard re-reads stay authoritative.
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error
		if err != nil {
			return fmt.Errorf("failed to lock room %s: %w", roomID, normalize(err))
		}
		return fn(&gormTx{tx: tx})
	})
}

func (s *PostgresStore) Watch(ctx context.Context, roomID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.PollInterval)
		defer ticker.Stop()

		var lastRoom, lastRound time.Time
		lastNumber := -1
		emit := func() bool {
			snap, ok, err := s.pollSnapshot(ctx, roomID)
			if err != nil {
				log.Printf("[Store] watch poll error for room %s: %v", roomID, err)
				return true
			}
			if !ok {
				return false // room gone, stop watching
			}
			roundAt := time.Time{}
			roundNumber := -1
			if snap.Round != nil {
				roundAt = snap.Round.UpdatedAt
				roundNumber = snap.Round.Number
			}
			changed := snap.Room.UpdatedAt.After(lastRoom) ||
				roundAt.After(lastRound) || roundNumber != lastNumber
			if !changed {
				return true
			}
			lastRoom, lastRound, lastNumber = snap.Room.UpdatedAt, roundAt, roundNumber
			select {
			case ch <- snap:
			case <-ctx.Done():
				return false
			}
			return true
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !emit() {
					return
				}
			}
		}
	}()
	return ch, cancel
}

func (s *PostgresStore) pollSnapshot(ctx context.Context, roomID string) (Snapshot, bool, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	snap := Snapshot{Room: *room}
	round, err := s.GetRound(ctx, roomID, room.CurrentRound)
	if err == nil {
		snap.Round = round
	} else if !errors.Is(err, ErrNotFound) {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func normalize(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
