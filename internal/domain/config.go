package domain

import (
	"errors"
	"time"
)

// Config validation errors.
var (
	ErrEmptySymbol       = errors.New("symbol must not be empty")
	ErrInvalidDateRange  = errors.New("start date must not be after end date")
	ErrNoCapital         = errors.New("starting capital must be positive")
	ErrInvalidPercentage = errors.New("strategy percentage out of range")
	ErrInvalidSchedule   = errors.New("contribution schedule must have positive frequency and amount")
)

// ContributionSchedule describes recurring external capital injections.
type ContributionSchedule struct {
	FrequencyDays int     // calendar days between contributions
	Amount        float64 // amount injected per contribution
}

// SessionConfig holds all parameters for a single run.
// Immutable once a run starts; each run owns its own copy.
type SessionConfig struct {
	Symbol    string
	StartDate time.Time // inclusive calendar day, UTC midnight
	EndDate   time.Time // inclusive calendar day, UTC midnight

	StartingCapital float64

	// Strategy percentages, expressed as whole percents (60 = 60%).
	CapitalPct      float64 // fraction of cash spent per buy fill
	BuyBelowPct     float64 // replacement buy offset below fill price
	SellAbovePct    float64 // paired sell offset above fill price
	BuyAfterSellPct float64 // grid-follow buy offset above sell price
	OrderGapPct     float64 // merge distance for the gap filter

	GapFilterEnabled bool

	// CashFloor is a buy gate: a buy that would leave cash below it is rejected.
	CashFloor float64

	Contribution *ContributionSchedule // nil when no schedule
}

// Validate checks config consistency. Returns the first violation found.
func (c *SessionConfig) Validate() error {
	if c.Symbol == "" {
		return ErrEmptySymbol
	}
	if c.StartDate.After(c.EndDate) {
		return ErrInvalidDateRange
	}
	if c.StartingCapital <= 0 {
		return ErrNoCapital
	}
	for _, pct := range []float64{c.CapitalPct, c.BuyBelowPct, c.SellAbovePct, c.BuyAfterSellPct, c.OrderGapPct} {
		if pct < 0 || pct > 100 {
			return ErrInvalidPercentage
		}
	}
	if c.CapitalPct == 0 {
		return ErrInvalidPercentage
	}
	if c.Contribution != nil {
		if c.Contribution.FrequencyDays <= 0 || c.Contribution.Amount <= 0 {
			return ErrInvalidSchedule
		}
	}
	return nil
}
