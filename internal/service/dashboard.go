package service

import (
	"context"
	"time"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/fanout"
)

// DashboardService assembles the result bundles one dashboard refresh tick
// consumes. Each bundle is five to six independent aggregate queries; they
// are fanned out concurrently at the boundary of one refresh, never across
// refresh ticks.
type DashboardService interface {
	Overview(ctx context.Context, windowMinutes int, quoteName string) (*models.OverviewBundle, error)
	Asset(ctx context.Context, baseName, quoteName string, windowMinutes int) (*models.AssetBundle, error)
	LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]models.LatestTrade, error)
}

type dashboardService struct {
	agg WindowedAggregator
	now func() time.Time
}

// NewDashboardService builds the bundle assembler on top of the aggregator.
func NewDashboardService(agg WindowedAggregator) DashboardService {
	return &dashboardService{agg: agg, now: time.Now}
}

const rankingLimit = 10

// Overview runs the market-wide refresh bundle over one window.
func (s *dashboardService) Overview(ctx context.Context, windowMinutes int, quoteName string) (*models.OverviewBundle, error) {
	w := models.NewWindow(s.now().UTC(), windowMinutes)

	results, err := fanout.Run(ctx, map[string]fanout.Task{
		"aggregate": func(ctx context.Context) (interface{}, error) {
			return s.agg.PeriodComparison(ctx, w, models.StatsFilter{})
		},
		"pairs": func(ctx context.Context) (interface{}, error) {
			return s.agg.PairsActivity(ctx, w, rankingLimit)
		},
		"assets": func(ctx context.Context) (interface{}, error) {
			return s.agg.AssetStats(ctx, w, quoteName)
		},
		"topPairsBuy": func(ctx context.Context) (interface{}, error) {
			return s.agg.TopPairs(ctx, w, quoteName, models.OrderSideBuy, rankingLimit)
		},
		"topPairsSell": func(ctx context.Context) (interface{}, error) {
			return s.agg.TopPairs(ctx, w, quoteName, models.OrderSideSell, rankingLimit)
		},
		"topExchanges": func(ctx context.Context) (interface{}, error) {
			return s.agg.BreakdownBy(ctx, models.BreakdownByMarket, w, models.StatsFilter{})
		},
	})
	if err != nil {
		return nil, err
	}

	return &models.OverviewBundle{
		WindowMinutes: windowMinutes,
		Aggregate:     results["aggregate"].(models.PeriodComparison),
		Pairs:         results["pairs"].([]models.PairActivity),
		Assets:        results["assets"].([]models.AssetStat),
		TopPairsBuy:   results["topPairsBuy"].([]models.PairNotional),
		TopPairsSell:  results["topPairsSell"].([]models.PairNotional),
		TopExchanges:  results["topExchanges"].([]models.BreakdownRow),
	}, nil
}

// Asset runs the per-asset refresh bundle. Price statistics are scoped to
// the base/quote pair; breakdowns and latest trades cover every quote the
// base trades against.
func (s *dashboardService) Asset(ctx context.Context, baseName, quoteName string, windowMinutes int) (*models.AssetBundle, error) {
	w := models.NewWindow(s.now().UTC(), windowMinutes)
	baseFilter := models.StatsFilter{BaseName: baseName}

	results, err := fanout.Run(ctx, map[string]fanout.Task{
		"prices": func(ctx context.Context) (interface{}, error) {
			return s.agg.PeriodComparison(ctx, w, models.StatsFilter{BaseName: baseName, QuoteName: quoteName})
		},
		"markets": func(ctx context.Context) (interface{}, error) {
			return s.agg.BreakdownBy(ctx, models.BreakdownByMarket, w, baseFilter)
		},
		"quoteAssets": func(ctx context.Context) (interface{}, error) {
			return s.agg.BreakdownBy(ctx, models.BreakdownByQuote, w, baseFilter)
		},
		"orderSides": func(ctx context.Context) (interface{}, error) {
			return s.agg.BreakdownBy(ctx, models.BreakdownByOrderSide, w, baseFilter)
		},
		"latestTrades": func(ctx context.Context) (interface{}, error) {
			return s.agg.LatestTrades(ctx, baseFilter, 50)
		},
	})
	if err != nil {
		return nil, err
	}

	return &models.AssetBundle{
		BaseName:      baseName,
		WindowMinutes: windowMinutes,
		Prices:        results["prices"].(models.PeriodComparison),
		Markets:       results["markets"].([]models.BreakdownRow),
		QuoteAssets:   results["quoteAssets"].([]models.BreakdownRow),
		OrderSides:    results["orderSides"].([]models.BreakdownRow),
		LatestTrades:  results["latestTrades"].([]models.LatestTrade),
	}, nil
}

// LatestTrades exposes the plain latest-trades listing outside a bundle.
func (s *dashboardService) LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]models.LatestTrade, error) {
	return s.agg.LatestTrades(ctx, f, limit)
}
