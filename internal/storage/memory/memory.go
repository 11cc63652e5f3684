// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

type entry struct {
	listing *domain.Listing
	pool    *domain.Pool
}

// Store keeps records in process memory. Records are cloned on the way in
// and out.
type Store struct {
	mu       sync.RWMutex
	seq      uint64
	entries  map[domain.ListingID]entry
	byToken  map[common.Address]domain.ListingID
	treasury *uint256.Int
}

var _ storage.Storage = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		entries:  make(map[domain.ListingID]entry),
		byToken:  make(map[common.Address]domain.ListingID),
		treasury: domain.Zero(),
	}
}

func (s *Store) Next(ctx context.Context) (domain.ListingID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return domain.ListingID(s.seq), nil
}

func (s *Store) Load(ctx context.Context, id domain.ListingID) (*domain.Listing, *domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil, domain.ErrListingNotFound
	}
	return e.listing.Clone(), e.pool.Clone(), nil
}

func (s *Store) LoadByToken(ctx context.Context, token common.Address) (*domain.Listing, *domain.Pool, error) {
	s.mu.RLock()
	id, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrListingNotFound
	}
	return s.Load(ctx, id)
}

// List returns every listing ordered by id.
func (s *Store) List(ctx context.Context) ([]*domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Listing, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.listing.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Commit(ctx context.Context, change storage.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := change.Pool; p != nil {
		_, ok := s.entries[p.ListingID]
		if !ok && (change.Listing == nil || change.Listing.ID != p.ListingID) {
			return domain.ErrListingNotFound
		}
	}

	if l := change.Listing; l != nil {
		e := s.entries[l.ID]
		e.listing = l.Clone()
		if e.pool == nil {
			e.pool = domain.NewPool(l.ID, l.Token)
		}
		s.entries[l.ID] = e
		s.byToken[l.Token] = l.ID
	}
	if p := change.Pool; p != nil {
		e := s.entries[p.ListingID]
		e.pool = p.Clone()
		s.entries[p.ListingID] = e
	}
	if change.Treasury != nil {
		s.treasury = change.Treasury.Clone()
	}
	return nil
}

func (s *Store) LoadTreasury(ctx context.Context) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury.Clone(), nil
}

func (s *Store) SaveTreasury(ctx context.Context, balance *uint256.Int) error {
	return s.Commit(ctx, storage.Change{Treasury: domain.CloneAmount(balance)})
}
