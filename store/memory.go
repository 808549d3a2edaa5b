package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clue-duel-system/models"
)

// MemoryStore is the in-process store backend used by tests and
// DATABASE_URL-less development runs. A single mutex serializes
// transactions, which is exactly the atomicity the Store contract asks for;
// watchers get snapshots pushed directly after each commit.
type MemoryStore struct {
	mu        sync.Mutex
	rooms     map[string]*models.Room
	rounds    map[string]*models.Round // key: roomID|number
	profiles  map[string]*models.PlayerProfile
	histories map[string]*models.BattleHistory

	watchMu  sync.Mutex
	watchers map[string][]*memWatcher
}

type memWatcher struct {
	mu     sync.Mutex
	closed bool
	ch     chan Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:     make(map[string]*models.Room),
		rounds:    make(map[string]*models.Round),
		profiles:  make(map[string]*models.PlayerProfile),
		histories: make(map[string]*models.BattleHistory),
		watchers:  make(map[string][]*memWatcher),
	}
}

func roundKey(roomID string, number int) string {
	return fmt.Sprintf("%s|%d", roomID, number)
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	if _, exists := s.rooms[room.ID]; exists {
		s.mu.Unlock()
		return ErrDuplicate
	}
	s.rooms[room.ID] = copyRoom(room)
	s.mu.Unlock()
	s.publish(room.ID)
	return nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(room), nil
}

func (s *MemoryStore) GetRound(ctx context.Context, roomID string, number int) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundKey(roomID, number)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRound(round), nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, playerID string) (*models.PlayerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (s *MemoryStore) GetHistory(ctx context.Context, pairKey string) (*models.BattleHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.histories[pairKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *history
	return &cp, nil
}

func (s *MemoryStore) TopProfiles(ctx context.Context, limit int) ([]models.PlayerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PlayerProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodWins != out[j].PeriodWins {
			return out[i].PeriodWins > out[j].PeriodWins
		}
		return out[i].Wins > out[j].Wins
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) InactiveRooms(ctx context.Context, cutoff time.Time) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Room
	for _, room := range s.rooms {
		if room.Status == models.RoomStatusInProgress && room.LastActionAt.Before(cutoff) {
			out = append(out, *copyRoom(room))
		}
	}
	return out, nil
}

// memTx stages writes and applies them only when the transaction function
// succeeds, so a failed body leaves no partial state behind.
type memTx struct {
	store *MemoryStore

	rooms     map[string]*models.Room
	rounds    map[string]*models.Round
	profiles  map[string]*models.PlayerProfile
	histories map[string]*models.BattleHistory
	created   map[string]bool // round keys created in this tx
}

func (t *memTx) Room(id string) (*models.Room, error) {
	if room, ok := t.rooms[id]; ok {
		return copyRoom(room), nil
	}
	room, ok := t.store.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(room), nil
}

func (t *memTx) Round(roomID string, number int) (*models.Round, error) {
	key := roundKey(roomID, number)
	if round, ok := t.rounds[key]; ok {
		return copyRound(round), nil
	}
	round, ok := t.store.rounds[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRound(round), nil
}

func (t *memTx) Profile(playerID string) (*models.PlayerProfile, error) {
	if profile, ok := t.profiles[playerID]; ok {
		cp := *profile
		return &cp, nil
	}
	profile, ok := t.store.profiles[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (t *memTx) History(pairKey string) (*models.BattleHistory, error) {
	if history, ok := t.histories[pairKey]; ok {
		cp := *history
		return &cp, nil
	}
	history, ok := t.store.histories[pairKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *history
	return &cp, nil
}

func (t *memTx) SaveRoom(room *models.Room) error {
	t.rooms[room.ID] = copyRoom(room)
	return nil
}

func (t *memTx) CreateRound(round *models.Round) error {
	key := roundKey(round.RoomID, round.Number)
	if _, ok := t.store.rounds[key]; ok {
		return ErrDuplicate
	}
	if _, ok := t.rounds[key]; ok {
		return ErrDuplicate
	}
	t.rounds[key] = copyRound(round)
	t.created[key] = true
	return nil
}

func (t *memTx) SaveRound(round *models.Round) error {
	t.rounds[roundKey(round.RoomID, round.Number)] = copyRound(round)
	return nil
}

func (t *memTx) SaveProfile(profile *models.PlayerProfile) error {
	cp := *profile
	t.profiles[profile.PlayerID] = &cp
	return nil
}

func (t *memTx) SaveHistory(history *models.BattleHistory) error {
	cp := *history
	t.histories[history.PairKey] = &cp
	return nil
}

func (s *MemoryStore) Transact(ctx context.Context, roomID string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	tx := &memTx{
		store:     s,
		rooms:     make(map[string]*models.Room),
		rounds:    make(map[string]*models.Round),
		profiles:  make(map[string]*models.PlayerProfile),
		histories: make(map[string]*models.BattleHistory),
		created:   make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	now := time.Now()
	for id, room := range tx.rooms {
		room.UpdatedAt = now
		s.rooms[id] = room
	}
	for key, round := range tx.rounds {
		round.UpdatedAt = now
		s.rounds[key] = round
	}
	for id, profile := range tx.profiles {
		profile.UpdatedAt = now
		s.profiles[id] = profile
	}
	for key, history := range tx.histories {
		history.UpdatedAt = now
		s.histories[key] = history
	}
	s.mu.Unlock()
	s.publish(roomID)
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, roomID string) (<-chan Snapshot, func()) {
	w := &memWatcher{ch: make(chan Snapshot, 16)}

	s.watchMu.Lock()
	s.watchers[roomID] = append(s.watchers[roomID], w)
	s.watchMu.Unlock()

	// Seed subscribers with the current state so they never start blind.
	if snap, ok := s.snapshot(roomID); ok {
		w.send(snap)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.watchMu.Lock()
			subs := s.watchers[roomID]
			for i, sub := range subs {
				if sub == w {
					s.watchers[roomID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			s.watchMu.Unlock()
			w.mu.Lock()
			w.closed = true
			close(w.ch)
			w.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return w.ch, cancel
}

func (s *MemoryStore) snapshot(roomID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{Room: *copyRoom(room)}
	if round, ok := s.rounds[roundKey(roomID, room.CurrentRound)]; ok {
		snap.Round = copyRound(round)
	}
	return snap, true
}

func (s *MemoryStore) publish(roomID string) {
	snap, ok := s.snapshot(roomID)
	if !ok {
		return
	}
	s.watchMu.Lock()
	subs := append([]*memWatcher(nil), s.watchers[roomID]...)
	s.watchMu.Unlock()
	for _, w := range subs {
		w.send(snap)
	}
}

// send never blocks a publisher: when a subscriber's buffer is full the
// oldest snapshot is dropped, since derived state is always recomputed from
// the latest one.
func (w *memWatcher) send(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- snap:
	default:
		select {
		case <-w.ch:
		default:
		}
		select {
		case w.ch <- snap:
		default:
		}
	}
}

func copyRoom(r *models.Room) *models.Room {
	cp := *r
	cp.GuestID = copyStr(r.GuestID)
	cp.WinnerID = copyStr(r.WinnerID)
	cp.LoserID = copyStr(r.LoserID)
	cp.DrawReason = copyStr(r.DrawReason)
	cp.StartedAt = copyTime(r.StartedAt)
	cp.CompletedAt = copyTime(r.CompletedAt)
	return &cp
}

func copyRound(r *models.Round) *models.Round {
	cp := *r
	cp.HostGuess = copyStr(r.HostGuess)
	cp.GuestGuess = copyStr(r.GuestGuess)
	cp.ReplyTimerStartedAt = copyTime(r.ReplyTimerStartedAt)
	cp.CompletedAt = copyTime(r.CompletedAt)
	return &cp
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
