package ebucks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/scheduler"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// UserPrefix namespaces a user's keys in the shared store
const UserPrefix = "user"

// Registry hands out one started Engine per user id. Engines stay live
// until EvictIdle or Close; WatchIdle bounds how many a long-running
// process keeps.
type Registry struct {
	store storage.Store
	opts  Options

	mu        sync.Mutex
	engines   map[string]*Engine
	lastUsed  map[string]time.Time
	closed    bool
	evictions *scheduler.Scheduler
}

// NewRegistry creates a registry over store. Every engine gets opts.
func NewRegistry(store storage.Store, opts Options) *Registry {
	return &Registry{
		store:    store,
		opts:     opts,
		engines:  make(map[string]*Engine),
		lastUsed: make(map[string]time.Time),
	}
}

// now reads the engines' clock so idle time follows the same time source
func (r *Registry) now() time.Time {
	if r.opts.Clock != nil {
		if t, err := r.opts.Clock.Now(); err == nil {
			return t
		}
	}
	return time.Now()
}

// Get returns the user's engine, building and starting it on first use
func (r *Registry) Get(ctx context.Context, userID string) (*Engine, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, types.NewEngineError(types.ErrInvalidArgument, "user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, storage.ErrClosed
	}
	if e, ok := r.engines[userID]; ok {
		r.lastUsed[userID] = r.now()
		// The engine may have been started on an earlier day
		if err := e.RecordLogin(ctx); err != nil {
			return nil, err
		}
		return e, nil
	}

	opts := r.opts
	opts.UserID = userID
	if opts.Logger != nil {
		opts.Logger = opts.Logger.WithUser(userID)
	}
	opts.Hooks = append([]wallet.Hook(nil), r.opts.Hooks...)
	if r.opts.UserHooks != nil {
		opts.Hooks = append(opts.Hooks, r.opts.UserHooks(userID)...)
	}

	e, err := New(storage.WithPrefix(r.store, UserPrefix+storage.Separator+userID), opts)
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		e.Close()
		return nil, err
	}
	r.engines[userID] = e
	r.lastUsed[userID] = r.now()
	return e, nil
}

// EvictIdle closes the engines not handed out for longer than idle and
// returns how many it closed. Engines with subscribers are kept. An evicted
// user's next Get starts a fresh engine, which forgets the last spin offered
// for double or nothing.
func (r *Registry) EvictIdle(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Engine
	for id, used := range r.lastUsed {
		if used.Before(cutoff) && !r.engines[id].watched() {
			stale = append(stale, r.engines[id])
			delete(r.engines, id)
			delete(r.lastUsed, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.Close()
	}
	return len(stale)
}

// WatchIdle runs EvictIdle every interval until ctx ends or the registry closes
func (r *Registry) WatchIdle(ctx context.Context, interval, idle time.Duration) {
	logger := r.opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	sched := scheduler.NewScheduler(logger.WithComponent("registry"))
	sched.AddTask("evict_idle_engines", interval, func(context.Context) error {
		if n := r.EvictIdle(idle); n > 0 {
			logger.Debug("Evicted %d idle engines", n)
		}
		return nil
	})

	r.mu.Lock()
	previous := r.evictions
	r.evictions = sched
	r.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}
	sched.Start(ctx)
}

// Users lists the ids with a live engine
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllStatistics aggregates the ledger of every user with a live engine
func (r *Registry) AllStatistics(ctx context.Context) ([]*entities.LedgerStatistics, error) {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.mu.Unlock()

	out := make([]*entities.LedgerStatistics, 0, len(engines))
	for _, e := range engines {
		stats, err := e.Statistics(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Close closes every engine. The shared store stays open.
func (r *Registry) Close() error {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]*Engine)
	r.lastUsed = make(map[string]time.Time)
	r.closed = true
	sched := r.evictions
	r.evictions = nil
	r.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}

	var errs []error
	for _, e := range engines {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
