// workers/inactivity_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"clue-duel-system/services"
	"clue-duel-system/store"
)

// InactivityWorker is the server-side backstop for abandoned rooms: the
// per-player flows already expire rooms they are watching, but a room both
// players disconnected from has no flow left, so a periodic sweep closes it.
type InactivityWorker struct {
	store    store.Store
	match    *services.MatchService
	clock    clockwork.Clock
	interval time.Duration
}

func NewInactivityWorker(s store.Store, match *services.MatchService, clock clockwork.Clock) *InactivityWorker {
	return &InactivityWorker{
		store:    s,
		match:    match,
		clock:    clock,
		interval: 10 * time.Second,
	}
}

func (w *InactivityWorker) Start(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			w.Sweep(ctx)
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Println("🔁 Inactivity sweep running")
	return sched, nil
}

// Sweep expires every in-progress room whose last action is older than the
// inactivity timeout. ExpireIfInactive re-checks under the room transaction,
// so a sweep racing a live flow is harmless.
func (w *InactivityWorker) Sweep(ctx context.Context) {
	cutoff := w.clock.Now().Add(-services.InactivityTimeout)
	rooms, err := w.store.InactiveRooms(ctx, cutoff)
	if err != nil {
		log.Printf("❌ Inactivity sweep query failed: %v", err)
		return
	}
	for _, room := range rooms {
		expired, err := w.match.ExpireIfInactive(ctx, room.ID)
		if err != nil {
			log.Printf("❌ Failed to expire room %s: %v", room.ID, err)
			continue
		}
		if expired {
			log.Printf("💤 Expired inactive room %s", room.ID)
		}
	}
}
