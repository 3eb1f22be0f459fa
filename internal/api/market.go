package api

import (
	"context"
	"fmt"

	"github.com/rickgao/kospi-sync/internal/model"
)

const marketPath = "/api/market"

// GetOverview fetches the market overview.
func (c *Client) GetOverview(ctx context.Context) (*model.MarketOverview, error) {
	var resp model.MarketOverview
	if err := c.get(ctx, marketPath+"/overview", nil, &resp); err != nil {
		return nil, fmt.Errorf("get overview: %w", err)
	}
	return &resp, nil
}

// GetPutCallRatio fetches the put/call ratios.
func (c *Client) GetPutCallRatio(ctx context.Context) (*model.PutCallRatio, error) {
	var resp model.PutCallRatio
	if err := c.get(ctx, marketPath+"/put-call-ratio", nil, &resp); err != nil {
		return nil, fmt.Errorf("get put/call ratio: %w", err)
	}
	return &resp, nil
}

// GetOptionChain fetches the option chain analysis.
func (c *Client) GetOptionChain(ctx context.Context) (*model.OptionChain, error) {
	var resp model.OptionChain
	if err := c.get(ctx, marketPath+"/option-chain", nil, &resp); err != nil {
		return nil, fmt.Errorf("get option chain: %w", err)
	}
	return &resp, nil
}

// GetFutures fetches all futures instruments.
func (c *Client) GetFutures(ctx context.Context) ([]model.Instrument, error) {
	var resp []model.Instrument
	if err := c.get(ctx, marketPath+"/futures", nil, &resp); err != nil {
		return nil, fmt.Errorf("get futures: %w", err)
	}
	return resp, nil
}

// GetOptions fetches all option instruments.
func (c *Client) GetOptions(ctx context.Context) ([]model.Instrument, error) {
	var resp []model.Instrument
	if err := c.get(ctx, marketPath+"/options", nil, &resp); err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	return resp, nil
}

// GetInstruments fetches the instruments of one kind.
func (c *Client) GetInstruments(ctx context.Context, kind model.InstrumentKind) ([]model.Instrument, error) {
	if kind == model.KindOptions {
		return c.GetOptions(ctx)
	}
	return c.GetFutures(ctx)
}

// GetSystemState fetches the backend's runtime mode.
func (c *Client) GetSystemState(ctx context.Context) (*model.SystemState, error) {
	var resp model.SystemState
	if err := c.get(ctx, marketPath+"/state", nil, &resp); err != nil {
		return nil, fmt.Errorf("get system state: %w", err)
	}
	return &resp, nil
}

// IsTradingDay asks the backend whether today is a trading day.
func (c *Client) IsTradingDay(ctx context.Context) (*model.TradingDay, error) {
	var resp model.TradingDay
	if err := c.get(ctx, marketPath+"/is-trading-day", nil, &resp); err != nil {
		return nil, fmt.Errorf("get trading day: %w", err)
	}
	return &resp, nil
}
