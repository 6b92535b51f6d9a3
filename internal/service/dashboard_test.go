package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
)

// stubAggregator records the windows and filters it was called with and
// returns canned bundles.
type stubAggregator struct {
	windows   []models.AggregationWindow
	assetErr  error
	breakdown []models.BreakdownRow
}

func (s *stubAggregator) PeriodStats(ctx context.Context, r models.TimeRange, f models.StatsFilter) (models.PeriodStats, error) {
	return models.PeriodStats{}, nil
}

func (s *stubAggregator) PeriodComparison(ctx context.Context, w models.AggregationWindow, f models.StatsFilter) (models.PeriodComparison, error) {
	s.windows = append(s.windows, w)
	return models.PeriodComparison{Current: models.PeriodStats{Count: 2}}, nil
}

func (s *stubAggregator) TopPairs(ctx context.Context, w models.AggregationWindow, quoteName string, side models.OrderSide, limit int) ([]models.PairNotional, error) {
	return []models.PairNotional{{BaseName: "Bitcoin", Known: true, TotalNotional: 20000}}, nil
}

func (s *stubAggregator) BreakdownBy(ctx context.Context, dim models.BreakdownDimension, w models.AggregationWindow, f models.StatsFilter) ([]models.BreakdownRow, error) {
	if s.assetErr != nil {
		return nil, s.assetErr
	}
	return s.breakdown, nil
}

func (s *stubAggregator) PairsActivity(ctx context.Context, w models.AggregationWindow, limit int) ([]models.PairActivity, error) {
	return []models.PairActivity{{BaseName: "Bitcoin", QuoteName: "United States Dollar", Known: true, Transactions: 9}}, nil
}

func (s *stubAggregator) AssetStats(ctx context.Context, w models.AggregationWindow, quoteName string) ([]models.AssetStat, error) {
	return []models.AssetStat{{BaseName: "Bitcoin", Known: true, Count: 9}}, nil
}

func (s *stubAggregator) LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]models.LatestTrade, error) {
	return []models.LatestTrade{{BaseName: "Bitcoin", PairKnown: true, OrderSide: "BUY"}}, nil
}

func (s *stubAggregator) ActiveQuotes(ctx context.Context, limit int) ([]models.DimensionCount, error) {
	return nil, nil
}

func (s *stubAggregator) ActiveBases(ctx context.Context, limit int) ([]models.DimensionCount, error) {
	return nil, nil
}

func TestOverview_AssemblesBundle(t *testing.T) {
	agg := &stubAggregator{breakdown: []models.BreakdownRow{{Label: "binance", Known: true, Count: 50}}}
	svc := &dashboardService{agg: agg, now: func() time.Time { return time.UnixMilli(600000) }}

	got, err := svc.Overview(context.Background(), 5, "United States Dollar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WindowMinutes != 5 {
		t.Errorf("window minutes = %d, want 5", got.WindowMinutes)
	}
	if got.Aggregate.Current.Count != 2 {
		t.Errorf("aggregate count = %d, want 2", got.Aggregate.Current.Count)
	}
	if len(got.TopPairsBuy) != 1 || got.TopPairsBuy[0].BaseName != "Bitcoin" {
		t.Errorf("top pairs buy = %+v, want Bitcoin", got.TopPairsBuy)
	}
	if len(got.TopExchanges) != 1 || got.TopExchanges[0].Label != "binance" {
		t.Errorf("top exchanges = %+v, want binance", got.TopExchanges)
	}
	if len(got.Pairs) != 1 || len(got.Assets) != 1 {
		t.Errorf("pairs/assets missing: %+v / %+v", got.Pairs, got.Assets)
	}

	// Every query in the bundle uses the same window end.
	for _, w := range agg.windows {
		if !w.Now.Equal(time.UnixMilli(600000)) || w.Minutes() != 5 {
			t.Errorf("window = %+v, want now=600000ms length=5m", w)
		}
	}
}

func TestAsset_AssemblesBundle(t *testing.T) {
	agg := &stubAggregator{breakdown: []models.BreakdownRow{{Label: "kraken", Known: true, Count: 3}}}
	svc := &dashboardService{agg: agg, now: func() time.Time { return time.UnixMilli(600000) }}

	got, err := svc.Asset(context.Background(), "Bitcoin", "United States Dollar", 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BaseName != "Bitcoin" || got.WindowMinutes != 15 {
		t.Errorf("bundle header = %q/%d, want Bitcoin/15", got.BaseName, got.WindowMinutes)
	}
	if len(got.Markets) != 1 || len(got.QuoteAssets) != 1 || len(got.OrderSides) != 1 {
		t.Errorf("breakdowns missing: %+v", got)
	}
	if len(got.LatestTrades) != 1 || got.LatestTrades[0].OrderSide != "BUY" {
		t.Errorf("latest trades = %+v, want one BUY", got.LatestTrades)
	}
}

func TestAsset_TaskFailureNamesTask(t *testing.T) {
	agg := &stubAggregator{assetErr: errors.New("store unavailable")}
	svc := &dashboardService{agg: agg, now: time.Now}

	_, err := svc.Asset(context.Background(), "Bitcoin", "United States Dollar", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "task ") {
		t.Errorf("error %q does not name the failing task", err)
	}
}
