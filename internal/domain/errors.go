// =============================
// File: internal/domain/errors.go
// =============================
package domain

import (
	"errors"
	"fmt"
)

// Rejections raised by the sale and pool core. Every one of them is terminal
// for the call that produced it and leaves the records untouched.
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrExceedsSupply         = errors.New("purchase exceeds total supply")
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrSaleClosed            = errors.New("sale is closed")
	ErrPoolNotInitialized    = errors.New("pool not initialized")
	ErrInvalidSeed           = errors.New("invalid seed")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrLiquidityLocked       = errors.New("liquidity is still locked")

	ErrListingNotFound        = errors.New("listing not found")
	ErrTokenExists            = errors.New("token already listed")
	ErrInsufficientListingFee = errors.New("insufficient listing fee")
	ErrPoolAlreadySeeded      = errors.New("pool already seeded")
	ErrPoolEmpty              = errors.New("pool has no reserves")
	ErrInsufficientOutput     = errors.New("insufficient output amount")
	ErrInsufficientFees       = errors.New("insufficient fee balance")
	ErrUnauthorized           = errors.New("caller is not the operator")
	ErrLiquidityNotCreated    = errors.New("liquidity not created yet")
	ErrNoContribution         = errors.New("no contribution for account")
	ErrRewardClaimed          = errors.New("reward already claimed")
	ErrOverflow               = errors.New("arithmetic overflow")
	ErrSlippageExceeded       = errors.New("slippage exceeded")
)

// OpError decorates a core rejection with the operation and listing it
// happened on.
type OpError struct {
	Op      string
	Listing ListingID
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s listing %d: %v", e.Op, e.Listing, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err unless it is nil.
func NewOpError(op string, id ListingID, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Listing: id, Err: err}
}
