package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

// rejections maps expect_error names to the sentinel they must match.
var rejections = map[string]error{
	"invalid_amount":         domain.ErrInvalidAmount,
	"exceeds_supply":         domain.ErrExceedsSupply,
	"insufficient_payment":   domain.ErrInsufficientPayment,
	"sale_closed":            domain.ErrSaleClosed,
	"pool_not_initialized":   domain.ErrPoolNotInitialized,
	"insufficient_liquidity": domain.ErrInsufficientLiquidity,
	"liquidity_locked":       domain.ErrLiquidityLocked,
	"token_exists":           domain.ErrTokenExists,
	"insufficient_fee":       domain.ErrInsufficientListingFee,
	"pool_empty":             domain.ErrPoolEmpty,
	"insufficient_output":    domain.ErrInsufficientOutput,
	"insufficient_fees":      domain.ErrInsufficientFees,
	"unauthorized":           domain.ErrUnauthorized,
	"not_graduated":          domain.ErrLiquidityNotCreated,
	"no_contribution":        domain.ErrNoContribution,
	"reward_claimed":         domain.ErrRewardClaimed,
	"slippage":               domain.ErrSlippageExceeded,
}

// StepError reports the step that stopped a listing.
type StepError struct {
	Listing string
	Index   int
	Action  Action
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("listing %q step %d (%s): %v", e.Listing, e.Index, e.Action, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes scenarios against an engine. Listings run in parallel,
// at most workers at a time; steps of one listing run in order.
type Runner struct {
	engine  *launchpad.Engine
	workers int
	logger  *zap.Logger
	// stepDelay paces steps so a dashboard can follow along.
	stepDelay time.Duration
}

func NewRunner(engine *launchpad.Engine, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{engine: engine, workers: workers, logger: logger.Named("runner")}
}

// WithStepDelay returns a copy of r that sleeps d between steps.
func (r *Runner) WithStepDelay(d time.Duration) *Runner {
	cp := *r
	cp.stepDelay = d
	return &cp
}

// Run executes every listing. The first unexpected failure cancels the
// remaining listings and is returned.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	started := time.Now()
	outcomes := make([]Outcome, len(sc.Listings))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, plan := range sc.Listings {
		g.Go(func() error {
			out, err := r.runListing(gCtx, plan)
			outcomes[i] = out
			return err
		})
	}

	err := g.Wait()
	res := &Result{Scenario: sc.Name, Outcomes: outcomes, Duration: time.Since(started)}
	if err != nil {
		r.logger.Error("Scenario failed", zap.String("scenario", sc.Name), zap.Error(err))
		return res, err
	}

	r.logger.Info("Scenario completed",
		zap.String("scenario", sc.Name),
		zap.Int("listings", len(outcomes)),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

func (r *Runner) runListing(ctx context.Context, plan *ListingPlan) (Outcome, error) {
	out := Outcome{Name: plan.Name}
	logger := r.logger.With(zap.String("listing", plan.Name))
	clock := plan.Start
	started := time.Now()
	var id domain.ListingID

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if step.Action == ActionAdvance {
			clock = clock.Add(step.Duration)
			out.Steps++
			continue
		}

		err := r.execute(ctx, plan, step, &id, clock)
		out.ListingID = uint64(id)
		out.Steps++

		switch {
		case step.ExpectError == "" && err != nil:
			return out, &StepError{Listing: plan.Name, Index: step.Index, Action: step.Action, Err: err}
		case step.ExpectError != "" && err == nil:
			return out, &StepError{Listing: plan.Name, Index: step.Index, Action: step.Action,
				Err: fmt.Errorf("expected %s, step succeeded", step.ExpectError)}
		case step.ExpectError != "":
			if !errors.Is(err, rejections[step.ExpectError]) {
				return out, &StepError{Listing: plan.Name, Index: step.Index, Action: step.Action,
					Err: fmt.Errorf("expected %s: %w", step.ExpectError, err)}
			}
			out.Rejected++
			logger.Debug("Step rejected as expected", zap.Int("step", step.Index), zap.Error(err))
		}

		if r.stepDelay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(r.stepDelay):
			}
		}
	}

	if id != 0 {
		if l, _, err := r.engine.Listing(ctx, id); err == nil {
			out.Graduated = l.LiquidityCreated
		}
	}
	out.Elapsed = time.Since(started)
	return out, nil
}

func (r *Runner) execute(ctx context.Context, plan *ListingPlan, step Step, id *domain.ListingID, at time.Time) error {
	e := r.engine

	switch step.Action {
	case ActionCreate:
		fee := step.Paid
		if fee == nil {
			fee = e.Book().Config().ListingFee
		}
		res, err := e.Create(ctx, launchpad.CreateRequest{
			Token:       plan.Token,
			Creator:     step.Account,
			Name:        plan.Name,
			Symbol:      plan.Symbol,
			MetadataURI: plan.MetadataURI,
			Fee:         fee,
			At:          at,
		})
		if err != nil {
			return err
		}
		*id = res.Listing.ID
		return nil

	case ActionBuy:
		paid := step.Paid
		if paid == nil {
			cost, err := e.CostFor(ctx, *id, step.Amount)
			if err != nil {
				return err
			}
			paid = cost
		}
		_, err := e.Buy(ctx, launchpad.BuyRequest{ListingID: *id, Buyer: step.Account, Amount: step.Amount, Paid: paid, At: at})
		return err

	case ActionBuyFunds:
		_, err := e.BuyWithFunds(ctx, launchpad.BuyFundsRequest{ListingID: *id, Buyer: step.Account, Funds: step.Funds, MinAmount: step.MinOut, At: at})
		return err

	case ActionSwapCurrency:
		_, err := e.SwapCurrencyForToken(ctx, launchpad.SwapRequest{ListingID: *id, Trader: step.Account, AmountIn: step.Amount, MinOut: step.MinOut, At: at})
		return err

	case ActionSwapToken:
		_, err := e.SwapTokenForCurrency(ctx, launchpad.SwapRequest{ListingID: *id, Trader: step.Account, AmountIn: step.Amount, MinOut: step.MinOut, At: at})
		return err

	case ActionAddLiquidity:
		_, err := e.AddLiquidity(ctx, launchpad.LiquidityRequest{ListingID: *id, Provider: step.Account, Currency: step.Amount, MaxTokens: step.MaxIn, At: at})
		return err

	case ActionRemoveLiquidity:
		_, err := e.RemoveLiquidity(ctx, launchpad.WithdrawRequest{ListingID: *id, Provider: step.Account, Liquidity: step.Liquidity, MinCurrency: step.MinOut, At: at})
		return err

	case ActionClaimReward:
		_, err := e.ClaimReward(ctx, *id, step.Account, at)
		return err

	case ActionWithdrawFees:
		_, err := e.WithdrawFees(ctx, step.Account, step.Amount, at)
		return err
	}
	return fmt.Errorf("unsupported action %q", step.Action)
}
