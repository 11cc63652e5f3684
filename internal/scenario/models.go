package scenario

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Action names a scenario step.
type Action string

const (
	ActionCreate          Action = "create"
	ActionBuy             Action = "buy"
	ActionBuyFunds        Action = "buy_funds"
	ActionSwapCurrency    Action = "swap_currency"
	ActionSwapToken       Action = "swap_token"
	ActionAddLiquidity    Action = "add_liquidity"
	ActionRemoveLiquidity Action = "remove_liquidity"
	ActionClaimReward     Action = "claim_reward"
	ActionWithdrawFees    Action = "withdraw_fees"
	ActionAdvance         Action = "advance"
)

// Scenario is a parsed scenario file.
type Scenario struct {
	Name     string
	Listings []*ListingPlan
}

// ListingPlan is the script for one listing. Steps run in order against a
// clock private to the listing.
type ListingPlan struct {
	Name        string
	Symbol      string
	MetadataURI string
	Token       common.Address
	Creator     common.Address
	Start       time.Time
	Steps       []Step
}

// Step is one action. Unused amounts stay nil; for buy a nil Paid means
// "pay the quoted cost".
type Step struct {
	Index   int
	Action  Action
	Account common.Address

	Amount    *uint256.Int
	Paid      *uint256.Int
	Funds     *uint256.Int
	Liquidity *uint256.Int
	// MinOut and MaxIn are slippage bounds.
	MinOut *uint256.Int
	MaxIn  *uint256.Int

	Duration time.Duration
	// ExpectError names a rejection the step must produce, e.g. "sale_closed".
	ExpectError string
}

// Outcome summarizes one listing's run.
type Outcome struct {
	Name      string
	ListingID uint64
	Steps     int
	// Rejected counts steps that failed as expected.
	Rejected  int
	Graduated bool
	Elapsed   time.Duration
}

// Result is returned by Runner.Run.
type Result struct {
	Scenario string
	Outcomes []Outcome
	Duration time.Duration
}
