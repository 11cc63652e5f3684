// =============================
// File: internal/launchpad/errors.go
// =============================
package launchpad

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// SlippageExceededError представляет отказ операции из-за превышения
// допустимого проскальзывания. Limit - минимум (или максимум для депозита),
// заданный вызывающим, Actual - фактическое значение.
type SlippageExceededError struct {
	Side   string
	Limit  *uint256.Int
	Actual *uint256.Int
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded: %s %s, limit %s", e.Side, e.Actual.Dec(), e.Limit.Dec())
}

func (e *SlippageExceededError) Unwrap() error {
	return domain.ErrSlippageExceeded
}

// checkMin returns a slippage error when minimum is set and actual falls short.
func checkMin(side string, actual, minimum *uint256.Int) error {
	if minimum == nil || !actual.Lt(minimum) {
		return nil
	}
	return &SlippageExceededError{Side: side, Limit: minimum.Clone(), Actual: actual.Clone()}
}

// checkMax returns a slippage error when maximum is set and actual exceeds it.
func checkMax(side string, actual, maximum *uint256.Int) error {
	if maximum == nil || !actual.Gt(maximum) {
		return nil
	}
	return &SlippageExceededError{Side: side, Limit: maximum.Clone(), Actual: actual.Clone()}
}
