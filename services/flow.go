// clue-duel-system/services/flow.go
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"clue-duel-system/catalog"
	"clue-duel-system/models"
	"clue-duel-system/store"
)

// FlowState is a step of one player's local round presentation. Each peer
// runs its own flow; the shared store is the only coordination between them.
type FlowState string

const (
	FlowCountdown  FlowState = "countdown"
	FlowPlaying    FlowState = "playing"
	FlowFinalizing FlowState = "finalizing"
	FlowReveal     FlowState = "reveal"
	FlowResult     FlowState = "result"
)

const (
	CountdownDelay  = 3 * time.Second
	HintInterval    = 5 * time.Second
	ReplyWindow     = 15 * time.Second
	FinalizeDelay   = 2 * time.Second
	RevealStepDelay = 1500 * time.Millisecond
	ResultCountdown = 5 * time.Second

	// How often a running flow checks the room for abandonment.
	watchdogInterval = 10 * time.Second
)

// FlowEvent is one item on a player's event stream.
type FlowEvent struct {
	Type  string                 `json:"type"`
	Round int                    `json:"round,omitempty"`
	State FlowState              `json:"state,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// UnlockChecker is called once per reveal so collection features can react
// to a subject being shown to a player.
type UnlockChecker interface {
	CheckUnlocks(ctx context.Context, playerID string, subject catalog.Subject)
}

// NopUnlockChecker is the default when no collection feature is wired.
type NopUnlockChecker struct{}

func (NopUnlockChecker) CheckUnlocks(context.Context, string, catalog.Subject) {}

// Transition is the snapshot-driven half of the state machine: from the
// current state and the latest snapshot it names the next state. The
// timer-driven transitions (countdown, finalize delay, reveal cadence,
// result countdown) are scheduled when their state is entered, not decided
// here.
func Transition(state FlowState, snap store.Snapshot, now time.Time) FlowState {
	if snap.Room.Status != models.RoomStatusInProgress {
		return state
	}
	if state == FlowPlaying && RoundSettleDue(snap.Round, now) {
		return FlowFinalizing
	}
	return state
}

// RoundSettleDue reports whether a playing round is ready to settle: both
// guesses are in, or the first guess's reply window has closed.
func RoundSettleDue(round *models.Round, now time.Time) bool {
	if round == nil {
		return false
	}
	if round.BothSubmitted() {
		return true
	}
	if d := ReplyDeadline(round); d != nil && !now.Before(*d) {
		return true
	}
	return false
}

// RoundFlow drives one player's view of a match. It consumes store
// snapshots, runs the presentation timers locally, and calls the idempotent
// round/score transactions at the matching steps. Both peers run one of
// these; whichever reaches a transaction second lands on a no-op.
type RoundFlow struct {
	Store   store.Store
	Rounds  *RoundService
	Scores  *ScoreService
	Match   *MatchService
	Catalog *catalog.Catalog
	Unlocks UnlockChecker
	Clock   clockwork.Clock

	RoomID   string
	PlayerID string

	mu            sync.Mutex
	ctx           context.Context
	state         FlowState
	round         int
	curRound      *models.Round
	isHost        bool
	hintsShown    int
	replyTimerSet bool
	finalized     bool
	resolved      bool
	timers        []clockwork.Timer
	events        chan FlowEvent
	closed        bool
}

func NewRoundFlow(s store.Store, rounds *RoundService, scores *ScoreService, match *MatchService,
	cat *catalog.Catalog, unlocks UnlockChecker, clock clockwork.Clock, roomID, playerID string) *RoundFlow {
	if unlocks == nil {
		unlocks = NopUnlockChecker{}
	}
	return &RoundFlow{
		Store:    s,
		Rounds:   rounds,
		Scores:   scores,
		Match:    match,
		Catalog:  cat,
		Unlocks:  unlocks,
		Clock:    clock,
		RoomID:   roomID,
		PlayerID: playerID,
		events:   make(chan FlowEvent, 64),
	}
}

// Events is the stream the transport layer forwards to the player. It is
// closed when Run returns.
func (f *RoundFlow) Events() <-chan FlowEvent {
	return f.events
}

// Deliver pushes an externally produced event (reactions, opponent
// presence) onto this player's stream.
func (f *RoundFlow) Deliver(ev FlowEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitLocked(ev)
}

// Run blocks until the match completes, the watch stream ends, or ctx is
// cancelled.
func (f *RoundFlow) Run(ctx context.Context) error {
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()
	defer f.shutdown()

	snaps, cancelWatch := f.Store.Watch(ctx, f.RoomID)
	defer cancelWatch()

	watchdog := f.Clock.NewTicker(watchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			if f.onSnapshot(snap) {
				return nil
			}
		case <-watchdog.Chan():
			if _, err := f.Match.ExpireIfInactive(ctx, f.RoomID); err != nil {
				log.Printf("⚠️ Room %s: inactivity check failed: %v", f.RoomID, err)
			}
		}
	}
}

func (f *RoundFlow) shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimersLocked()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

// onSnapshot folds one store snapshot into the local state machine.
// Returns true when the match is over and the flow should stop.
func (f *RoundFlow) onSnapshot(snap store.Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	room := snap.Room
	f.isHost = room.IsHost(f.PlayerID)

	if room.Status == models.RoomStatusCompleted {
		f.cancelTimersLocked()
		data := map[string]interface{}{
			"host_health":  room.HostHealth,
			"guest_health": room.GuestHealth,
		}
		if room.WinnerID != nil {
			data["winner_id"] = *room.WinnerID
		}
		if room.LoserID != nil {
			data["loser_id"] = *room.LoserID
		}
		if room.DrawReason != nil {
			data["draw_reason"] = *room.DrawReason
		}
		f.emitLocked(FlowEvent{Type: "match_over", Round: f.round, Data: data})
		return true
	}
	if room.Status != models.RoomStatusInProgress {
		return false
	}

	if room.CurrentRound != f.round {
		f.resetForRoundLocked(room.CurrentRound, snap.Round)
	}
	f.curRound = snap.Round

	if f.state == FlowPlaying && snap.Round != nil {
		now := f.Clock.Now()
		if f.hintsShown == 0 {
			f.revealHintLocked()
		}
		if Transition(f.state, snap, now) == FlowFinalizing {
			f.finalizeLocked()
			return false
		}
		if d := ReplyDeadline(snap.Round); d != nil && !f.replyTimerSet {
			f.replyTimerSet = true
			n := f.round
			f.addTimerLocked(f.Clock.AfterFunc(d.Sub(now), func() { f.onReplyExpired(n) }))
			f.emitLocked(FlowEvent{Type: "reply_deadline", Round: n, Data: map[string]interface{}{
				"deadline": d.UTC().Format(time.RFC3339),
			}})
		}
	}
	return false
}

// resetForRoundLocked clears every per-round flag and timer. All local
// presentation state is rebuilt from the new round's snapshot, so a flow
// that lagged behind can never leak a previous round's timers forward.
func (f *RoundFlow) resetForRoundLocked(number int, round *models.Round) {
	f.cancelTimersLocked()
	fresh := f.round == 0
	f.round = number
	f.finalized = false
	f.resolved = false
	f.replyTimerSet = false
	f.hintsShown = 0
	f.curRound = round

	if fresh && number == 1 && round == nil {
		f.setStateLocked(FlowCountdown)
		f.addTimerLocked(f.Clock.AfterFunc(CountdownDelay, func() { f.afterCountdown(number) }))
		return
	}
	f.enterPlayingLocked()
}

func (f *RoundFlow) afterCountdown(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.round != number || f.state != FlowCountdown {
		return
	}
	f.enterPlayingLocked()
}

func (f *RoundFlow) enterPlayingLocked() {
	f.setStateLocked(FlowPlaying)
	number := f.round
	ctx := f.ctx
	go func() {
		if err := f.Rounds.EnsureRound(ctx, f.RoomID, number); err != nil {
			log.Printf("⚠️ Room %s: ensure round %d failed: %v", f.RoomID, number, err)
		}
	}()
	if f.curRound != nil {
		f.revealHintLocked()
	}
}

// revealHintLocked shows the next clue and schedules the one after it.
// Hints keep flowing every interval until the full clue list is out or the
// round leaves the playing state.
func (f *RoundFlow) revealHintLocked() {
	if f.curRound == nil {
		return
	}
	subject, ok := f.Catalog.Get(f.curRound.SubjectID)
	if !ok || f.hintsShown >= len(subject.Clues) {
		return
	}
	clue := subject.Clues[f.hintsShown]
	f.hintsShown++
	f.emitLocked(FlowEvent{Type: "hint", Round: f.round, Data: map[string]interface{}{
		"index": f.hintsShown,
		"clue":  clue,
	}})
	if f.hintsShown >= len(subject.Clues) {
		return
	}
	number := f.round
	f.addTimerLocked(f.Clock.AfterFunc(HintInterval, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.round == number && f.state == FlowPlaying {
			f.revealHintLocked()
		}
	}))
}

func (f *RoundFlow) onReplyExpired(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.round != number || f.state != FlowPlaying {
		return
	}
	f.finalizeLocked()
}

func (f *RoundFlow) finalizeLocked() {
	if f.finalized {
		return
	}
	f.finalized = true
	f.setStateLocked(FlowFinalizing)
	number := f.round
	f.addTimerLocked(f.Clock.AfterFunc(FinalizeDelay, func() { f.beginReveal(number) }))
}

// beginReveal walks the reveal sub-steps on a fixed cadence: region, role,
// this seat's rarity, then the full identity.
func (f *RoundFlow) beginReveal(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.round != number || f.state != FlowFinalizing {
		return
	}
	f.setStateLocked(FlowReveal)

	if f.curRound == nil {
		f.enterResultLocked(number)
		return
	}
	subject, ok := f.Catalog.Get(f.curRound.SubjectID)
	if !ok {
		f.enterResultLocked(number)
		return
	}

	ctx := f.ctx
	playerID := f.PlayerID
	go f.Unlocks.CheckUnlocks(ctx, playerID, subject)

	rarity := f.curRound.GuestRarity
	if f.isHost {
		rarity = f.curRound.HostRarity
	}
	steps := []struct {
		name  string
		value string
	}{
		{"region", subject.Region},
		{"role", subject.Role},
		{"rarity", rarity},
		{"identity", subject.Name},
	}
	for i, step := range steps {
		step := step
		if i == 0 {
			f.emitRevealStepLocked(number, step.name, step.value)
			continue
		}
		f.addTimerLocked(f.Clock.AfterFunc(time.Duration(i)*RevealStepDelay, func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.round == number && f.state == FlowReveal {
				f.emitRevealStepLocked(number, step.name, step.value)
			}
		}))
	}
	f.addTimerLocked(f.Clock.AfterFunc(time.Duration(len(steps))*RevealStepDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.round == number && f.state == FlowReveal {
			f.enterResultLocked(number)
		}
	}))
}

func (f *RoundFlow) emitRevealStepLocked(number int, name, value string) {
	f.emitLocked(FlowEvent{Type: "reveal_step", Round: number, Data: map[string]interface{}{
		"step":  name,
		"value": value,
	}})
}

// enterResultLocked settles the round and, after the result countdown,
// advances the room. Both calls are idempotent store transactions.
func (f *RoundFlow) enterResultLocked(number int) {
	f.setStateLocked(FlowResult)
	ctx := f.ctx
	if !f.resolved {
		f.resolved = true
		go func() {
			if err := f.Scores.ResolveRound(ctx, f.RoomID, number); err != nil {
				log.Printf("⚠️ Room %s: resolve round %d failed: %v", f.RoomID, number, err)
			}
		}()
	}
	f.addTimerLocked(f.Clock.AfterFunc(ResultCountdown, func() {
		if err := f.Rounds.AdvanceRound(ctx, f.RoomID, number); err != nil {
			log.Printf("⚠️ Room %s: advance from round %d failed: %v", f.RoomID, number, err)
		}
	}))
}

func (f *RoundFlow) setStateLocked(state FlowState) {
	f.state = state
	f.emitLocked(FlowEvent{Type: "state", Round: f.round, State: state})
}

func (f *RoundFlow) addTimerLocked(t clockwork.Timer) {
	f.timers = append(f.timers, t)
}

func (f *RoundFlow) cancelTimersLocked() {
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
}

// emitLocked never blocks the state machine: when the consumer lags the
// oldest event is dropped.
func (f *RoundFlow) emitLocked(ev FlowEvent) {
	if f.closed {
		return
	}
	select {
	case f.events <- ev:
	default:
		select {
		case <-f.events:
		default:
		}
		select {
		case f.events <- ev:
		default:
		}
	}
}
