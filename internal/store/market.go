package store

import (
	"math"
	"sort"

	"github.com/rickgao/kospi-sync/internal/model"
)

// maxRanked caps the ranked instrument lists.
const maxRanked = 5

// SentimentPolicy selects how market sentiment is derived from put/call ratios.
type SentimentPolicy string

const (
	// SentimentDiscrete labels the volume ratio against fixed bands.
	SentimentDiscrete SentimentPolicy = "discrete"
	// SentimentContinuous scores the average of volume and OI ratios on 0-100.
	SentimentContinuous SentimentPolicy = "continuous"
)

// SentimentLabel is the qualitative market sentiment.
type SentimentLabel string

const (
	Bullish       SentimentLabel = "BULLISH"
	MildlyBullish SentimentLabel = "MILDLY_BULLISH"
	Neutral       SentimentLabel = "NEUTRAL"
	MildlyBearish SentimentLabel = "MILDLY_BEARISH"
	Bearish       SentimentLabel = "BEARISH"
)

// Sentiment is the derived market sentiment.
type Sentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"` // 0-100, bullish high; 50 under the discrete policy
	Ratio float64        `json:"ratio"` // ratio the label was derived from
}

// Volume holds total traded volume.
type Volume struct {
	Futures int64 `json:"futures"`
	Options int64 `json:"options"`
	Total   int64 `json:"total"`
}

// MarketStore holds the latest market overview.
type MarketStore struct {
	versioned[model.MarketOverview]

	policy      SentimentPolicy
	rejectEmpty bool
}

// NewMarketStore creates a market store.
func NewMarketStore(policy SentimentPolicy, rejectEmpty bool) *MarketStore {
	if policy == "" {
		policy = SentimentDiscrete
	}
	return &MarketStore{policy: policy, rejectEmpty: rejectEmpty}
}

// Update replaces the overview unless seq is stale or the overview is empty
// and empty overviews are rejected.
func (s *MarketStore) Update(seq uint64, ov model.MarketOverview) error {
	if s.rejectEmpty && ov.IsEmpty() {
		return ErrEmptySnapshot
	}
	return s.update(seq, ov)
}

// Snapshot returns the current overview.
func (s *MarketStore) Snapshot() (model.MarketOverview, bool) {
	return s.snapshot()
}

// TotalVolume returns futures, options and combined volume.
func (s *MarketStore) TotalVolume() Volume {
	ov, _ := s.snapshot()
	return Volume{
		Futures: ov.TotalFuturesVolume,
		Options: ov.TotalOptionsVolume,
		Total:   ov.TotalFuturesVolume + ov.TotalOptionsVolume,
	}
}

// PutCallRatio returns the put/call ratios of the current overview.
func (s *MarketStore) PutCallRatio() (model.PutCallRatio, bool) {
	ov, ok := s.snapshot()
	if !ok || ov.PutCallRatio == nil {
		return model.PutCallRatio{}, false
	}
	return *ov.PutCallRatio, true
}

// Sentiment derives market sentiment under the configured policy.
// Without a put/call ratio the result is Neutral.
func (s *MarketStore) Sentiment() Sentiment {
	pcr, ok := s.PutCallRatio()
	if !ok {
		return Sentiment{Label: Neutral, Score: 50}
	}
	if s.policy == SentimentContinuous {
		return ContinuousSentiment(pcr.VolumeRatio, pcr.OpenInterestRatio)
	}
	return DiscreteSentiment(pcr.VolumeRatio)
}

// DiscreteSentiment labels a put/call volume ratio.
func DiscreteSentiment(ratio float64) Sentiment {
	label := Neutral
	switch {
	case ratio > 1.5:
		label = Bearish
	case ratio < 0.7:
		label = Bullish
	}
	return Sentiment{Label: label, Score: 50, Ratio: ratio}
}

// ContinuousSentiment scores the average of the volume and OI ratios.
func ContinuousSentiment(volumeRatio, oiRatio float64) Sentiment {
	avg := (volumeRatio + oiRatio) / 2

	var s Sentiment
	switch {
	case avg < 0.7:
		s = Sentiment{Label: Bullish, Score: 70 + (0.7-avg)*50}
	case avg < 1.0:
		s = Sentiment{Label: MildlyBullish, Score: 50 + (1.0-avg)*66.7}
	case avg < 1.3:
		s = Sentiment{Label: MildlyBearish, Score: 30 + (1.3-avg)*66.7}
	default:
		s = Sentiment{Label: Bearish, Score: math.Max(0, 30-(avg-1.3)*30)}
	}
	s.Score = math.Min(100, s.Score)
	s.Ratio = avg
	return s
}

// TopByVolume returns up to n instruments ranked by volume.
func (s *MarketStore) TopByVolume(n int) []model.TopInstrument {
	ov, _ := s.snapshot()
	return rank(ov.TopByVolume, n, func(t model.TopInstrument) int64 { return t.Volume })
}

// TopByOpenInterest returns up to n instruments ranked by open interest.
func (s *MarketStore) TopByOpenInterest(n int) []model.TopInstrument {
	ov, _ := s.snapshot()
	return rank(ov.TopByOpenInterest, n, func(t model.TopInstrument) int64 { return t.OpenInterest })
}

func rank(items []model.TopInstrument, n int, key func(model.TopInstrument) int64) []model.TopInstrument {
	if n <= 0 || n > maxRanked {
		n = maxRanked
	}
	out := make([]model.TopInstrument, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) > key(out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
