package store

import (
	"math"
	"sort"

	"github.com/rickgao/kospi-sync/internal/model"
)

const strikeEpsilon = 1e-6

// ChainStore holds the latest option chain and the user's selected strike.
type ChainStore struct {
	versioned[model.OptionChain]

	selected    float64
	hasSelected bool
}

// NewChainStore creates an empty chain store.
func NewChainStore() *ChainStore {
	return &ChainStore{}
}

// Update replaces the chain. Rows are kept sorted by strike. The selected
// strike is seeded from the ATM strike of the first chain only.
func (s *ChainStore) Update(seq uint64, chain model.OptionChain) error {
	rows := make([]model.StrikeRow, len(chain.StrikeChain))
	copy(rows, chain.StrikeChain)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StrikePrice < rows[j].StrikePrice })
	chain.StrikeChain = rows

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.set(seq, chain); err != nil {
		return err
	}
	if !s.hasSelected && chain.ATMStrike > 0 {
		s.selected = chain.ATMStrike
		s.hasSelected = true
	}
	return nil
}

// Snapshot returns the current chain.
func (s *ChainStore) Snapshot() (model.OptionChain, bool) {
	return s.snapshot()
}

// UnderlyingPrice returns the KOSPI200 index level of the current chain.
func (s *ChainStore) UnderlyingPrice() float64 {
	c, _ := s.snapshot()
	return c.UnderlyingPrice
}

// ATMStrike returns the at-the-money strike of the current chain.
func (s *ChainStore) ATMStrike() float64 {
	c, _ := s.snapshot()
	return c.ATMStrike
}

// MaxPain returns the max pain strike and the option holders' loss there.
func (s *ChainStore) MaxPain() (price, loss float64) {
	c, _ := s.snapshot()
	return c.MaxPainPrice, c.MaxPainLoss
}

// Rows returns the strike rows in ascending strike order.
func (s *ChainStore) Rows() []model.StrikeRow {
	c, _ := s.snapshot()
	return c.StrikeChain
}

// ATMRow returns the row at the ATM strike.
func (s *ChainStore) ATMRow() (model.StrikeRow, bool) {
	c, ok := s.snapshot()
	if !ok {
		return model.StrikeRow{}, false
	}
	return findRow(c.StrikeChain, c.ATMStrike)
}

// TotalCallOI sums call open interest over all strikes.
func (s *ChainStore) TotalCallOI() int64 {
	var total int64
	for _, r := range s.Rows() {
		total += r.CallOpenInterest
	}
	return total
}

// TotalPutOI sums put open interest over all strikes.
func (s *ChainStore) TotalPutOI() int64 {
	var total int64
	for _, r := range s.Rows() {
		total += r.PutOpenInterest
	}
	return total
}

// WeightedGreeks aggregates Greeks over both sides of every strike, each
// weighted by its share of total open interest. Zero open interest yields a
// zero aggregate.
func (s *ChainStore) WeightedGreeks() model.Greeks {
	return weightedGreeks(s.Rows())
}

func weightedGreeks(rows []model.StrikeRow) model.Greeks {
	var totalOI int64
	for _, r := range rows {
		totalOI += r.CallOpenInterest + r.PutOpenInterest
	}

	var g model.Greeks
	if totalOI == 0 {
		return g
	}

	total := float64(totalOI)
	for _, r := range rows {
		cw := float64(r.CallOpenInterest) / total
		pw := float64(r.PutOpenInterest) / total

		g.Delta += cw*r.CallDelta + pw*r.PutDelta
		g.Gamma += cw*r.CallGamma + pw*r.PutGamma
		g.Theta += cw*r.CallTheta + pw*r.PutTheta
		g.Vega += cw*r.CallVega + pw*r.PutVega
		g.ImpliedVolatility += cw*r.CallImpliedVolatility + pw*r.PutImpliedVolatility
	}
	return g
}

// SelectStrike sets the strike the user is inspecting. It survives chain
// updates and ATM changes.
func (s *ChainStore) SelectStrike(strike float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = strike
	s.hasSelected = true
}

// SelectedStrike returns the selected strike.
func (s *ChainStore) SelectedStrike() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.hasSelected
}

// SelectedRow returns the row at the selected strike.
func (s *ChainStore) SelectedRow() (model.StrikeRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasSelected || !s.ok {
		return model.StrikeRow{}, false
	}
	return findRow(s.value.StrikeChain, s.selected)
}

func findRow(rows []model.StrikeRow, strike float64) (model.StrikeRow, bool) {
	i := sort.Search(len(rows), func(i int) bool { return rows[i].StrikePrice >= strike-strikeEpsilon })
	if i < len(rows) && math.Abs(rows[i].StrikePrice-strike) < strikeEpsilon {
		return rows[i], true
	}
	return model.StrikeRow{}, false
}
