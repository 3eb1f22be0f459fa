package model

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a payload that decoded but breaks a domain rule.
var ErrInvalid = errors.New("invalid payload")

// Validate checks that volumes and put/call ratios are non-negative.
// An empty snapshot is valid here; whether to accept it is a caller policy.
func (o *MarketOverview) Validate() error {
	if o.TotalFuturesVolume < 0 || o.TotalOptionsVolume < 0 {
		return fmt.Errorf("%w: negative volume", ErrInvalid)
	}
	if pcr := o.PutCallRatio; pcr != nil {
		if pcr.VolumeRatio < 0 || pcr.OpenInterestRatio < 0 || pcr.TradingValueRatio < 0 {
			return fmt.Errorf("%w: negative put/call ratio", ErrInvalid)
		}
	}
	return nil
}

// Validate checks every strike row: strike above zero, open interest not
// negative.
func (c *OptionChain) Validate() error {
	for _, row := range c.StrikeChain {
		if row.StrikePrice <= 0 {
			return fmt.Errorf("%w: strike %v", ErrInvalid, row.StrikePrice)
		}
		if row.CallOpenInterest < 0 || row.PutOpenInterest < 0 {
			return fmt.Errorf("%w: negative open interest at strike %v", ErrInvalid, row.StrikePrice)
		}
	}
	return nil
}
