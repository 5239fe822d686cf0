package orders

import "context"

// FillExecutor is the execution-context capability: backtests fill
// instantly, a live deployment routes the order to a broker. The engine's
// grid logic is identical in both contexts.
type FillExecutor interface {
	// ExecuteBuy places a buy for shares at price. Returning an error
	// aborts the fill; no engine state is mutated.
	ExecuteBuy(ctx context.Context, symbol string, shares, price float64, timestamp int64) error

	// ExecuteSell places a sell for shares at price.
	ExecuteSell(ctx context.Context, symbol string, shares, price float64, timestamp int64) error
}

// SimulatedExecutor fills every order instantly at the requested price.
type SimulatedExecutor struct{}

// NewSimulatedExecutor creates the backtest fill executor.
func NewSimulatedExecutor() *SimulatedExecutor {
	return &SimulatedExecutor{}
}

// ExecuteBuy always succeeds.
func (e *SimulatedExecutor) ExecuteBuy(_ context.Context, _ string, _, _ float64, _ int64) error {
	return nil
}

// ExecuteSell always succeeds.
func (e *SimulatedExecutor) ExecuteSell(_ context.Context, _ string, _, _ float64, _ int64) error {
	return nil
}

var _ FillExecutor = (*SimulatedExecutor)(nil)
