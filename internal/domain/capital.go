package domain

// CapitalState tracks cash and equity for a single run.
// Equity is never stored independently: it is always recomputed from cash
// plus the mark-to-market value of open positions.
type CapitalState struct {
	Cash        float64
	PeakEquity  float64
	Contributed float64 // cumulative externally-injected capital
}

// Equity returns cash plus open positions marked at price.
func (s *CapitalState) Equity(openShares, price float64) float64 {
	return s.Cash + openShares*price
}

// MarkToMarket updates peak equity from the current mark.
// Returns the recomputed equity.
func (s *CapitalState) MarkToMarket(openShares, price float64) float64 {
	equity := s.Equity(openShares, price)
	if equity > s.PeakEquity {
		s.PeakEquity = equity
	}
	return equity
}

// Contribute injects external capital into the account.
func (s *CapitalState) Contribute(amount float64) {
	s.Cash += amount
	s.Contributed += amount
}
