package dto

import "github.com/mneedham/pinot-cryptowatch/internal/domain/models"

// UnknownLabel is the display sentinel used for buckets whose dimension id
// had no entry in the reference tables. The lookup miss is carried as an
// explicit flag everywhere below the API boundary and only becomes a string
// here.
const UnknownLabel = "unknown"

// BreakdownEntry is one bucket of a count breakdown as rendered to clients.
type BreakdownEntry struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// RankedPair is one row of a top-pairs ranking as rendered to clients.
type RankedPair struct {
	BaseName      string  `json:"baseName"`
	TotalNotional float64 `json:"totalNotional"`
}

// LatestTradeRow is one recently published trade as rendered to clients.
type LatestTradeRow struct {
	TimestampMillis int64   `json:"tsMs"`
	BaseName        string  `json:"baseName"`
	QuoteName       string  `json:"quoteName"`
	Market          string  `json:"market"`
	Exchange        string  `json:"exchange"`
	Amount          float64 `json:"amount"`
	Price           float64 `json:"price"`
	OrderSide       string  `json:"orderSide"`
}

// OverviewResponse is the JSON body of GET /api/v1/overview.
type OverviewResponse struct {
	WindowMinutes int                     `json:"windowMinutes"`
	Aggregate     models.PeriodComparison `json:"aggregate"`
	Pairs         []models.PairActivity   `json:"pairs"`
	Assets        []models.AssetStat      `json:"assets"`
	TopPairsBuy   []RankedPair            `json:"topPairsBuy"`
	TopPairsSell  []RankedPair            `json:"topPairsSell"`
	TopExchanges  []BreakdownEntry        `json:"topExchanges"`
}

// AssetResponse is the JSON body of GET /api/v1/asset/:base.
type AssetResponse struct {
	BaseName      string                  `json:"baseName"`
	WindowMinutes int                     `json:"windowMinutes"`
	Prices        models.PeriodComparison `json:"prices"`
	Markets       []BreakdownEntry        `json:"markets"`
	QuoteAssets   []BreakdownEntry        `json:"quoteAssets"`
	OrderSides    []BreakdownEntry        `json:"orderSides"`
	LatestTrades  []LatestTradeRow        `json:"latestTrades"`
}

// TradesResponse is the JSON body of GET /api/v1/trades/latest.
type TradesResponse struct {
	Trades []LatestTradeRow `json:"trades"`
}

// NewOverviewResponse maps an assembled overview bundle to its API shape.
func NewOverviewResponse(b models.OverviewBundle) OverviewResponse {
	return OverviewResponse{
		WindowMinutes: b.WindowMinutes,
		Aggregate:     b.Aggregate,
		Pairs:         b.Pairs,
		Assets:        b.Assets,
		TopPairsBuy:   toRankedPairs(b.TopPairsBuy),
		TopPairsSell:  toRankedPairs(b.TopPairsSell),
		TopExchanges:  toBreakdown(b.TopExchanges),
	}
}

func toRankedPairs(rows []models.PairNotional) []RankedPair {
	out := make([]RankedPair, 0, len(rows))
	for _, r := range rows {
		name := r.BaseName
		if !r.Known {
			name = UnknownLabel
		}
		out = append(out, RankedPair{BaseName: name, TotalNotional: r.TotalNotional})
	}
	return out
}

// NewAssetResponse maps an assembled per-asset bundle to its API shape.
func NewAssetResponse(b models.AssetBundle) AssetResponse {
	return AssetResponse{
		BaseName:      b.BaseName,
		WindowMinutes: b.WindowMinutes,
		Prices:        b.Prices,
		Markets:       toBreakdown(b.Markets),
		QuoteAssets:   toBreakdown(b.QuoteAssets),
		OrderSides:    toBreakdown(b.OrderSides),
		LatestTrades:  toTradeRows(b.LatestTrades),
	}
}

// NewTradesResponse maps resolved latest trades to their API shape.
func NewTradesResponse(trades []models.LatestTrade) TradesResponse {
	return TradesResponse{Trades: toTradeRows(trades)}
}

func toBreakdown(rows []models.BreakdownRow) []BreakdownEntry {
	out := make([]BreakdownEntry, 0, len(rows))
	for _, r := range rows {
		label := r.Label
		if !r.Known {
			label = UnknownLabel
		}
		out = append(out, BreakdownEntry{Label: label, Count: r.Count})
	}
	return out
}

func toTradeRows(trades []models.LatestTrade) []LatestTradeRow {
	out := make([]LatestTradeRow, 0, len(trades))
	for _, tr := range trades {
		row := LatestTradeRow{
			TimestampMillis: tr.TimestampMillis,
			BaseName:        tr.BaseName,
			QuoteName:       tr.QuoteName,
			Market:          tr.Market,
			Exchange:        tr.Exchange,
			Amount:          tr.Amount,
			Price:           tr.Price,
			OrderSide:       tr.OrderSide,
		}
		if !tr.PairKnown {
			row.BaseName = UnknownLabel
			row.QuoteName = UnknownLabel
		}
		if !tr.MarketKnown {
			row.Market = UnknownLabel
		}
		if !tr.ExchangeKnown {
			row.Exchange = UnknownLabel
		}
		out = append(out, row)
	}
	return out
}
