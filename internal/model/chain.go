package model

// -----------------------------------------------------------------------------
// Option Chain
// -----------------------------------------------------------------------------

// OptionChain is the option chain analysis published on /topic/option-chain
// and served by GET /api/market/option-chain.
type OptionChain struct {
	StrikeChain []StrikeRow `json:"strikeChain"`

	MaxPainPrice float64 `json:"maxPainPrice"`
	MaxPainLoss  float64 `json:"maxPainLoss"`

	HighestVolumeStrike float64 `json:"highestVolumeStrike"`
	HighestVolumeAmount int64   `json:"highestVolumeAmount"`
	HighestOIStrike     float64 `json:"highestOIStrike"`
	HighestOIAmount     int64   `json:"highestOIAmount"`

	ATMStrike       float64    `json:"atmStrike"`
	UnderlyingPrice float64    `json:"underlyingPrice"`
	ATMGreeks       *ATMGreeks `json:"atmGreeks,omitempty"`
}

// StrikeRow holds call and put data for a single strike.
type StrikeRow struct {
	StrikePrice float64 `json:"strikePrice"`

	CallPrice             float64 `json:"callPrice"`
	CallVolume            int64   `json:"callVolume"`
	CallOpenInterest      int64   `json:"callOpenInterest"`
	CallImpliedVolatility float64 `json:"callImpliedVolatility"`
	CallDelta             float64 `json:"callDelta"`
	CallGamma             float64 `json:"callGamma"`
	CallTheta             float64 `json:"callTheta"`
	CallVega              float64 `json:"callVega"`
	CallBidPrice          float64 `json:"callBidPrice"`
	CallAskPrice          float64 `json:"callAskPrice"`
	CallBidSize           int64   `json:"callBidSize,omitempty"`
	CallAskSize           int64   `json:"callAskSize,omitempty"`

	PutPrice             float64 `json:"putPrice"`
	PutVolume            int64   `json:"putVolume"`
	PutOpenInterest      int64   `json:"putOpenInterest"`
	PutImpliedVolatility float64 `json:"putImpliedVolatility"`
	PutDelta             float64 `json:"putDelta"`
	PutGamma             float64 `json:"putGamma"`
	PutTheta             float64 `json:"putTheta"`
	PutVega              float64 `json:"putVega"`
	PutBidPrice          float64 `json:"putBidPrice"`
	PutAskPrice          float64 `json:"putAskPrice"`
	PutBidSize           int64   `json:"putBidSize,omitempty"`
	PutAskSize           int64   `json:"putAskSize,omitempty"`

	TotalVolume       int64 `json:"totalVolume"`
	TotalOpenInterest int64 `json:"totalOpenInterest"`
}

// ATMGreeks is the backend's Greeks summary at the ATM strike.
// Gamma, theta, vega and implied volatility are call-side values.
type ATMGreeks struct {
	CallDelta         float64 `json:"callDelta"`
	PutDelta          float64 `json:"putDelta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

// Greeks is an aggregate of option sensitivities.
type Greeks struct {
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}
