// =============================
// File: internal/launchpad/engine.go
// =============================
package launchpad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/pool"
	"github.com/rovshanmuradov/launchpad/internal/sale"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Store is the persistence capability the engine runs against.
type Store = storage.Storage

// Clock supplies the current time when a request carries none.
type Clock func() time.Time

// Options tune the engine host.
type Options struct {
	// Operator may withdraw collected listing fees.
	Operator common.Address
	Clock    Clock
	// CommitRetries bounds attempts per store commit, first one included.
	CommitRetries uint
	CommitBackoff time.Duration
}

// DefaultOptions returns three commit attempts starting at 50ms.
func DefaultOptions() Options {
	return Options{
		Clock:         time.Now,
		CommitRetries: 3,
		CommitBackoff: 50 * time.Millisecond,
	}
}

// Engine serializes operations per listing and runs each one as
// load, mutate a private copy, commit. A rejected operation writes nothing.
type Engine struct {
	store  Store
	book   *sale.Book
	pools  *pool.Manager
	bus    *events.Bus
	logger *zap.Logger
	opts   Options

	locksMu sync.RWMutex
	locks   map[domain.ListingID]*sync.Mutex

	// treasuryMu guards the fee balance read-modify-write.
	treasuryMu sync.Mutex
}

// New builds an engine. bus may be nil.
func New(store Store, book *sale.Book, pools *pool.Manager, bus *events.Bus, logger *zap.Logger, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CommitRetries == 0 {
		opts.CommitRetries = 1
	}
	if opts.CommitBackoff <= 0 {
		opts.CommitBackoff = 50 * time.Millisecond
	}
	return &Engine{
		store:  store,
		book:   book,
		pools:  pools,
		bus:    bus,
		logger: logger.Named("engine"),
		opts:   opts,
		locks:  make(map[domain.ListingID]*sync.Mutex),
	}
}

// Book returns the sale rules the engine applies.
func (e *Engine) Book() *sale.Book {
	return e.book
}

// Pools returns the pool rules the engine applies.
func (e *Engine) Pools() *pool.Manager {
	return e.pools
}

func (e *Engine) lock(id domain.ListingID) func() {
	e.locksMu.RLock()
	mu, ok := e.locks[id]
	e.locksMu.RUnlock()

	if !ok {
		e.locksMu.Lock()
		if mu, ok = e.locks[id]; !ok {
			mu = &sync.Mutex{}
			e.locks[id] = mu
		}
		e.locksMu.Unlock()
	}

	mu.Lock()
	return mu.Unlock
}

func (e *Engine) now(at time.Time) time.Time {
	if at.IsZero() {
		return e.opts.Clock()
	}
	return at
}

// load fetches a listing under its lock.
func (e *Engine) load(ctx context.Context, op string, id domain.ListingID) (*domain.Listing, *domain.Pool, error) {
	l, p, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return nil, nil, e.reject(op, id, err)
		}
		return nil, nil, fmt.Errorf("%s listing %d: load: %w", op, id, err)
	}
	return l, p, nil
}

// reject logs a refused operation and decorates the error.
func (e *Engine) reject(op string, id domain.ListingID, err error) error {
	e.logger.Warn("Operation rejected",
		zap.String("op", op),
		zap.Uint64("listing_id", uint64(id)),
		zap.Error(err))
	return domain.NewOpError(op, id, err)
}

// commit writes change, retrying transient store failures.
func (e *Engine) commit(ctx context.Context, op string, change storage.Change) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.opts.CommitBackoff
	policy.MaxInterval = e.opts.CommitBackoff * 10

	notify := func(err error, d time.Duration) {
		e.logger.Warn("Commit failed, retrying",
			zap.String("op", op),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	operation := func() (struct{}, error) {
		err := e.store.Commit(ctx, change)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() != nil || errors.Is(err, domain.ErrListingNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.opts.CommitRetries),
		backoff.WithNotify(notify))
	if err != nil {
		e.logger.Error("Commit failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (e *Engine) publish(evts []events.Event) {
	if e.bus == nil || len(evts) == 0 {
		return
	}
	if err := e.bus.Publish(evts...); err != nil {
		e.logger.Warn("Failed to publish events", zap.Int("count", len(evts)), zap.Error(err))
	}
}
