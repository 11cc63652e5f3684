package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/launchpad/internal/units"
)

// tokenNamespace derives token addresses for listings that do not set one.
var tokenNamespace = uuid.MustParse("6f1c2a1e-58f3-4a8e-9d3c-7b2e4c1d9a10")

// File is the YAML layout of a scenario.
type File struct {
	Name     string            `yaml:"name"`
	Start    string            `yaml:"start"`
	Accounts map[string]string `yaml:"accounts"`
	Listings []struct {
		Name        string `yaml:"name"`
		Symbol      string `yaml:"symbol"`
		MetadataURI string `yaml:"metadata_uri"`
		Token       string `yaml:"token"`
		Creator     string `yaml:"creator"`
		Start       string `yaml:"start"`
		Steps       []struct {
			Action      string `yaml:"action"`
			Account     string `yaml:"account"`
			Amount      string `yaml:"amount"`
			Paid        string `yaml:"paid"`
			Funds       string `yaml:"funds"`
			Liquidity   string `yaml:"liquidity"`
			MinOut      string `yaml:"min_out"`
			MaxIn       string `yaml:"max_in"`
			Duration    string `yaml:"duration"`
			ExpectError string `yaml:"expect_error"`
		} `yaml:"steps"`
	} `yaml:"listings"`
}

// Loader reads scenario files.
type Loader struct {
	logger   *zap.Logger
	decimals uint8
	// defaultStart applies when neither scenario nor listing sets a start.
	defaultStart time.Time
}

func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{
		logger:       logger.Named("scenario"),
		decimals:     units.Decimals,
		defaultStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LoadFile reads and parses path.
func (l *Loader) LoadFile(path string) (*Scenario, error) {
	if filepath.IsAbs(path) {
		l.logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return l.Parse(data)
}

// Parse builds a Scenario from YAML. Unlike task loading, an invalid step
// fails the whole file: later steps depend on earlier ones.
func (l *Loader) Parse(data []byte) (*Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Listings) == 0 {
		return nil, fmt.Errorf("no listings found in scenario")
	}

	start := l.defaultStart
	if f.Start != "" {
		t, err := time.Parse(time.RFC3339, f.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario start: %w", err)
		}
		start = t
	}

	r := resolver{accounts: f.Accounts, decimals: l.decimals}
	sc := &Scenario{Name: f.Name}
	names := make(map[string]bool)

	for i, ld := range f.Listings {
		if ld.Name == "" {
			return nil, fmt.Errorf("listing %d: name is required", i)
		}
		if names[ld.Name] {
			return nil, fmt.Errorf("listing %q defined twice", ld.Name)
		}
		names[ld.Name] = true

		plan := &ListingPlan{
			Name:        ld.Name,
			Symbol:      ld.Symbol,
			MetadataURI: ld.MetadataURI,
			Start:       start,
		}
		if plan.Symbol == "" {
			plan.Symbol = strings.ToUpper(ld.Name)
		}

		var err error
		if ld.Token != "" {
			if plan.Token, err = r.address(ld.Token); err != nil {
				return nil, fmt.Errorf("listing %q token: %w", ld.Name, err)
			}
		} else {
			id := uuid.NewSHA1(tokenNamespace, []byte(f.Name+"/"+ld.Name))
			plan.Token = common.BytesToAddress(id[:])
		}
		if plan.Creator, err = r.address(ld.Creator); err != nil {
			return nil, fmt.Errorf("listing %q creator: %w", ld.Name, err)
		}
		if ld.Start != "" {
			if plan.Start, err = time.Parse(time.RFC3339, ld.Start); err != nil {
				return nil, fmt.Errorf("listing %q start: %w", ld.Name, err)
			}
		}

		for j, sd := range ld.Steps {
			step := Step{
				Index:       j,
				Action:      Action(sd.Action),
				ExpectError: sd.ExpectError,
			}
			if step.ExpectError != "" {
				if _, ok := rejections[step.ExpectError]; !ok {
					return nil, fmt.Errorf("listing %q step %d: unknown expect_error %q", ld.Name, j, step.ExpectError)
				}
			}
			if err := r.fill(&step, sd.Account, sd.Amount, sd.Paid, sd.Funds, sd.Liquidity, sd.MinOut, sd.MaxIn, sd.Duration); err != nil {
				return nil, fmt.Errorf("listing %q step %d (%s): %w", ld.Name, j, sd.Action, err)
			}
			plan.Steps = append(plan.Steps, step)
		}

		if err := normalize(plan); err != nil {
			return nil, fmt.Errorf("listing %q: %w", ld.Name, err)
		}
		sc.Listings = append(sc.Listings, plan)
	}

	l.logger.Info("Loaded scenario",
		zap.String("name", sc.Name),
		zap.Int("listings", len(sc.Listings)))
	return sc, nil
}

// normalize puts a create step first when the file omits it.
func normalize(plan *ListingPlan) error {
	for i, s := range plan.Steps {
		if s.Action == ActionCreate && i != 0 {
			return fmt.Errorf("create must be the first step")
		}
	}
	if len(plan.Steps) == 0 || plan.Steps[0].Action != ActionCreate {
		plan.Steps = append([]Step{{Action: ActionCreate}}, plan.Steps...)
	}
	if plan.Steps[0].Account == (common.Address{}) {
		plan.Steps[0].Account = plan.Creator
	}
	for i := range plan.Steps {
		plan.Steps[i].Index = i
	}
	return nil
}

type resolver struct {
	accounts map[string]string
	decimals uint8
}

// address accepts an account alias or a hex address.
func (r resolver) address(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("account is required")
	}
	if hex, ok := r.accounts[s]; ok {
		s = hex
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("unknown account %q", s)
	}
	return common.HexToAddress(s), nil
}

func (r resolver) amount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return units.Parse(s, r.decimals)
}

func (r resolver) fill(step *Step, account, amount, paid, funds, liquidity, minOut, maxIn, duration string) error {
	var err error
	if step.Amount, err = r.amount(amount); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if step.Paid, err = r.amount(paid); err != nil {
		return fmt.Errorf("paid: %w", err)
	}
	if step.Funds, err = r.amount(funds); err != nil {
		return fmt.Errorf("funds: %w", err)
	}
	if step.Liquidity, err = r.amount(liquidity); err != nil {
		return fmt.Errorf("liquidity: %w", err)
	}
	if step.MinOut, err = r.amount(minOut); err != nil {
		return fmt.Errorf("min_out: %w", err)
	}
	if step.MaxIn, err = r.amount(maxIn); err != nil {
		return fmt.Errorf("max_in: %w", err)
	}

	switch step.Action {
	case ActionAdvance:
		if duration == "" {
			return fmt.Errorf("duration is required")
		}
		if step.Duration, err = time.ParseDuration(duration); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		if step.Duration <= 0 {
			return fmt.Errorf("duration must be positive")
		}
		return nil
	case ActionCreate:
		if account == "" {
			return nil
		}
	case ActionBuy, ActionAddLiquidity, ActionSwapCurrency, ActionSwapToken,
		ActionClaimReward, ActionWithdrawFees, ActionBuyFunds, ActionRemoveLiquidity:
	default:
		return fmt.Errorf("unsupported action")
	}

	if step.Account, err = r.address(account); err != nil {
		return err
	}

	switch step.Action {
	case ActionBuy, ActionSwapCurrency, ActionSwapToken, ActionAddLiquidity, ActionWithdrawFees:
		if step.Amount == nil {
			return fmt.Errorf("amount is required")
		}
	case ActionBuyFunds:
		if step.Funds == nil {
			return fmt.Errorf("funds is required")
		}
	case ActionRemoveLiquidity:
		if step.Liquidity == nil {
			return fmt.Errorf("liquidity is required")
		}
	}
	return nil
}
