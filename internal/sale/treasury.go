package sale

import (
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// Treasury is the operator's balance of collected listing fees.
type Treasury struct {
	Balance *uint256.Int
}

// NewTreasury starts a treasury at balance.
func NewTreasury(balance *uint256.Int) *Treasury {
	return &Treasury{Balance: domain.CloneAmount(balance)}
}

// Collect adds a paid listing fee.
func (t *Treasury) Collect(fee *uint256.Int) error {
	sum, err := domain.Add(t.Balance, fee)
	if err != nil {
		return err
	}
	t.Balance = sum
	return nil
}

// Withdraw takes amount out of the balance.
func (t *Treasury) Withdraw(amount *uint256.Int) error {
	if domain.IsZero(amount) {
		return domain.ErrInvalidAmount
	}
	if amount.Gt(t.Balance) {
		return domain.ErrInsufficientFees
	}
	t.Balance = new(uint256.Int).Sub(t.Balance, amount)
	return nil
}

func (t *Treasury) Clone() *Treasury {
	return NewTreasury(t.Balance)
}
