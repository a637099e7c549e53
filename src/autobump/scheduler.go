package autobump

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/swapboard/swapboard/src/gateway"
	"github.com/swapboard/swapboard/src/store"
)

// sweepTimeout bounds a whole sweep, scheduled or manual.
const sweepTimeout = 2 * time.Minute

// Config carries the knobs the scheduler reads on every sweep, so a
// settings change takes effect without a restart.
type Config struct {
	// CronSpec is the sweep schedule in cron syntax, e.g. "@hourly".
	CronSpec string
	// DaysInactive returns the current staleness threshold in days.
	DaysInactive func() int
}

// Scheduler periodically revives stale posts: it drops a reminder message
// into each thread whose last activity is older than the threshold and
// counts the bump. Posting also refreshes last_activity, so a post is left
// alone until it goes stale again.
type Scheduler struct {
	store *store.Store
	forum gateway.Forum
	cfg   Config
	cron  *cron.Cron

	// sweepMu serializes sweeps. A manual /force-bump during a scheduled
	// run waits its turn and then finds nothing left to bump.
	sweepMu sync.Mutex
}

func New(st *store.Store, forum gateway.Forum, cfg Config) *Scheduler {
	if cfg.CronSpec == "" {
		cfg.CronSpec = "@hourly"
	}
	if cfg.DaysInactive == nil {
		cfg.DaysInactive = func() int { return 7 }
	}
	return &Scheduler{store: st, forum: forum, cfg: cfg}
}

func (sc *Scheduler) Name() string { return "autobump" }

// Start registers the sweep with the cron runner and starts it.
func (sc *Scheduler) Start() error {
	sc.cron = cron.New()
	_, err := sc.cron.AddFunc(sc.cfg.CronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		bumped, err := sc.RunOnce(ctx)
		if err != nil {
			log.Printf("autobump: sweep: %v", err)
		}
		if bumped > 0 {
			log.Printf("autobump: bumped %d stale post(s)", bumped)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule bump sweep: %w", err)
	}
	sc.cron.Start()
	log.Printf("autobump: scheduler started (%s)", sc.cfg.CronSpec)
	return nil
}

func (sc *Scheduler) Stop() {
	if sc.cron != nil {
		sc.cron.Stop()
	}
}

// RunOnce performs a single sweep and returns how many posts it bumped.
// Each post is bumped independently: a failure to post the reminder leaves
// that post untouched for the next sweep and never aborts the rest.
func (sc *Scheduler) RunOnce(ctx context.Context) (int, error) {
	sc.sweepMu.Lock()
	defer sc.sweepMu.Unlock()

	if n, err := sc.store.SweepClaims(ctx); err != nil {
		log.Printf("autobump: sweep stale claims: %v", err)
	} else if n > 0 {
		log.Printf("autobump: removed %d stale claim(s)", n)
	}

	posts, err := sc.store.GetInactivePosts(ctx, sc.cfg.DaysInactive())
	if err != nil {
		return 0, fmt.Errorf("list stale posts: %w", err)
	}

	bumped := 0
	for _, post := range posts {
		reminder := fmt.Sprintf(
			"<@%s>, is **%s** still on offer? This post has been quiet for a while. Use the buttons on the first message to update its status.",
			post.AuthorID, post.Title)
		if err := sc.forum.PostMessage(post.ThreadID, reminder); err != nil {
			log.Printf("autobump: remind thread %s: %v", post.ThreadID, err)
			continue
		}
		if err := sc.store.IncrementBump(ctx, post.ThreadID); err != nil {
			// The post closed between the query and the write; the
			// reminder is harmless and the record stays frozen.
			log.Printf("autobump: record bump for %s: %v", post.ThreadID, err)
			continue
		}
		bumped++
	}
	return bumped, nil
}
