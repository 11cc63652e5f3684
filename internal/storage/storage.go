// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// Change is everything one engine operation writes. Nil fields are left as
// they are; a non-nil Treasury replaces the stored fee balance.
type Change struct {
	Listing  *domain.Listing
	Pool     *domain.Pool
	Treasury *uint256.Int
}

// Storage определяет интерфейс хранилища листингов и пулов.
// Реализации возвращают копии: изменение полученной записи не влияет на
// хранилище до Commit.
type Storage interface {
	// Next выдает следующий идентификатор листинга.
	Next(ctx context.Context) (domain.ListingID, error)

	// Листинги и пулы
	Load(ctx context.Context, id domain.ListingID) (*domain.Listing, *domain.Pool, error)
	LoadByToken(ctx context.Context, token common.Address) (*domain.Listing, *domain.Pool, error)
	List(ctx context.Context) ([]*domain.Listing, error)

	// Commit записывает изменение целиком или не записывает ничего.
	Commit(ctx context.Context, change Change) error

	// Комиссии
	LoadTreasury(ctx context.Context) (*uint256.Int, error)
	SaveTreasury(ctx context.Context, balance *uint256.Int) error
}
