package models

// StatsFilter narrows aggregate queries by dimension name. Zero value means
// no filtering. Names are matched through the pairs reference table with an
// id-set-membership predicate, never a join.
type StatsFilter struct {
	BaseName  string
	QuoteName string
}

// BreakdownDimension selects the grouping axis of a breakdown query.
type BreakdownDimension string

const (
	BreakdownByMarket    BreakdownDimension = "market"
	BreakdownByQuote     BreakdownDimension = "quote"
	BreakdownByOrderSide BreakdownDimension = "side"
)

// PeriodStats carries the fixed statistic set computed over one time range.
// Count == 0 means the window had no matching trades; in that case every
// other field is zero and must not be interpreted as a measured value.
type PeriodStats struct {
	Count        int64   `json:"count"`
	AmountTraded float64 `json:"amountTraded"`
	MinPrice     float64 `json:"minPrice"`
	MaxPrice     float64 `json:"maxPrice"`
	AvgPrice     float64 `json:"avgPrice"`
}

// HasData reports whether any trades matched the window.
func (s PeriodStats) HasData() bool {
	return s.Count > 0
}

// MetricDelta is one metric's current value together with its relative change
// versus the previous period. Relative is nil when the previous period was
// empty: there is no meaningful percent change from zero.
type MetricDelta struct {
	Value    float64  `json:"value"`
	Relative *float64 `json:"relative,omitempty"`
}

// PeriodComparison is the current-vs-previous result of one stats query.
// NoData is set when the current period itself had no trades, regardless of
// the previous period; the per-metric fields are then meaningless.
type PeriodComparison struct {
	NoData       bool        `json:"noData"`
	Transactions MetricDelta `json:"transactions"`
	AmountTraded MetricDelta `json:"amountTraded"`
	MinPrice     MetricDelta `json:"minPrice"`
	MaxPrice     MetricDelta `json:"maxPrice"`
	AvgPrice     MetricDelta `json:"avgPrice"`
	Current      PeriodStats `json:"current"`
	Previous     PeriodStats `json:"previous"`
}

// PairNotional is one row of a top-pairs ranking: the traded value in
// quote-currency terms (sum of amount*price) attributed to one base asset.
// Known is false for the bucket that aggregates instruments missing from the
// pairs reference table.
type PairNotional struct {
	BaseName      string  `json:"baseName"`
	Known         bool    `json:"known"`
	TotalNotional float64 `json:"totalNotional"`
}

// BreakdownRow is one bucket of a count breakdown. Known is false when the
// bucket aggregates trades whose dimension id had no entry in the reference
// table; presentation decides how to label those.
type BreakdownRow struct {
	Label string `json:"label"`
	Known bool   `json:"known"`
	Count int64  `json:"count"`
}

// PairActivity is one row of the per-pair activity table: trade traffic for
// one base/quote pair over the window.
type PairActivity struct {
	BaseName     string  `json:"baseName"`
	QuoteName    string  `json:"quoteName"`
	Known        bool    `json:"known"`
	Transactions int64   `json:"transactions"`
	AmountTraded float64 `json:"amountTraded"`
	BiggestTrade float64 `json:"biggestTrade"`
	AverageTrade float64 `json:"averageTrade"`
}

// AssetStat is one row of the per-asset price table for a fixed quote
// currency.
type AssetStat struct {
	BaseName     string  `json:"baseName"`
	Known        bool    `json:"known"`
	MinPrice     float64 `json:"minPrice"`
	AvgPrice     float64 `json:"avgPrice"`
	MaxPrice     float64 `json:"maxPrice"`
	Count        int64   `json:"count"`
	AmountTraded float64 `json:"amountTraded"`
}

// LatestTrade is one recently published record with its dimension ids
// resolved to display names. The Known flags carry lookup misses through to
// the API boundary instead of a sentinel string.
type LatestTrade struct {
	TimestampMillis int64   `json:"tsMs"`
	BaseName        string  `json:"baseName"`
	QuoteName       string  `json:"quoteName"`
	PairKnown       bool    `json:"pairKnown"`
	Market          string  `json:"market"`
	MarketKnown     bool    `json:"marketKnown"`
	Exchange        string  `json:"exchange"`
	ExchangeKnown   bool    `json:"exchangeKnown"`
	Amount          float64 `json:"amount"`
	Price           float64 `json:"price"`
	OrderSide       string  `json:"orderSide"`
}

// DimensionCount is one row of the most-active dimension listings (top quote
// currencies, top base assets).
type DimensionCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// OverviewBundle is the complete result of one dashboard overview refresh,
// assembled from concurrent independent queries.
type OverviewBundle struct {
	WindowMinutes int              `json:"windowMinutes"`
	Aggregate     PeriodComparison `json:"aggregate"`
	Pairs         []PairActivity   `json:"pairs"`
	Assets        []AssetStat      `json:"assets"`
	TopPairsBuy   []PairNotional   `json:"topPairsBuy"`
	TopPairsSell  []PairNotional   `json:"topPairsSell"`
	TopExchanges  []BreakdownRow   `json:"topExchanges"`
}

// AssetBundle is the complete result of one per-asset dashboard refresh.
type AssetBundle struct {
	BaseName      string           `json:"baseName"`
	WindowMinutes int              `json:"windowMinutes"`
	Prices        PeriodComparison `json:"prices"`
	Markets       []BreakdownRow   `json:"markets"`
	QuoteAssets   []BreakdownRow   `json:"quoteAssets"`
	OrderSides    []BreakdownRow   `json:"orderSides"`
	LatestTrades  []LatestTrade    `json:"latestTrades"`
}
