package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/storage"
)

// WindowedAggregator issues the fixed catalogue of aggregate queries against
// the trade log for one trailing window, resolving dimension ids to names
// through the reference tables.
//
// Results are assembled from query return values per request; no mutable
// state is shared across requests and nothing is cached between them
// (freshness over cache coherence).
type WindowedAggregator interface {
	PeriodStats(ctx context.Context, r models.TimeRange, f models.StatsFilter) (models.PeriodStats, error)
	PeriodComparison(ctx context.Context, w models.AggregationWindow, f models.StatsFilter) (models.PeriodComparison, error)
	TopPairs(ctx context.Context, w models.AggregationWindow, quoteName string, side models.OrderSide, limit int) ([]models.PairNotional, error)
	BreakdownBy(ctx context.Context, dim models.BreakdownDimension, w models.AggregationWindow, f models.StatsFilter) ([]models.BreakdownRow, error)
	PairsActivity(ctx context.Context, w models.AggregationWindow, limit int) ([]models.PairActivity, error)
	AssetStats(ctx context.Context, w models.AggregationWindow, quoteName string) ([]models.AssetStat, error)
	LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]models.LatestTrade, error)
	ActiveQuotes(ctx context.Context, limit int) ([]models.DimensionCount, error)
	ActiveBases(ctx context.Context, limit int) ([]models.DimensionCount, error)
}

type windowedAggregator struct {
	repo storage.TradesRepository
	dims storage.DimensionResolver
}

// NewWindowedAggregator builds the aggregation engine over the trade log
// repository and the dimension resolver.
func NewWindowedAggregator(repo storage.TradesRepository, dims storage.DimensionResolver) WindowedAggregator {
	return &windowedAggregator{repo: repo, dims: dims}
}

// PeriodStats computes the statistic set over one explicit range.
func (a *windowedAggregator) PeriodStats(ctx context.Context, r models.TimeRange, f models.StatsFilter) (models.PeriodStats, error) {
	return a.repo.PeriodStats(ctx, r, f)
}

// PeriodComparison computes the current and previous period statistics with
// two independent queries and derives the relative deltas.
func (a *windowedAggregator) PeriodComparison(ctx context.Context, w models.AggregationWindow, f models.StatsFilter) (models.PeriodComparison, error) {
	current, err := a.repo.PeriodStats(ctx, w.CurrentRange(), f)
	if err != nil {
		return models.PeriodComparison{}, fmt.Errorf("current period: %w", err)
	}
	previous, err := a.repo.PeriodStats(ctx, w.PreviousRange(), f)
	if err != nil {
		return models.PeriodComparison{}, fmt.Errorf("previous period: %w", err)
	}
	return ComparePeriods(current, previous), nil
}

// ComparePeriods derives the delta report from two already computed periods.
//
// Rules:
//   - current period empty: NoData, no delta math at all.
//   - previous period empty: raw current values, nil relative deltas (there
//     is no meaningful percent change from zero).
//   - both populated: relative delta (current - previous) / previous per
//     metric.
func ComparePeriods(current, previous models.PeriodStats) models.PeriodComparison {
	cmp := models.PeriodComparison{Current: current, Previous: previous}

	if !current.HasData() {
		cmp.NoData = true
		return cmp
	}

	withPrevious := previous.HasData()
	cmp.Transactions = metricDelta(float64(current.Count), float64(previous.Count), withPrevious)
	cmp.AmountTraded = metricDelta(current.AmountTraded, previous.AmountTraded, withPrevious)
	cmp.MinPrice = metricDelta(current.MinPrice, previous.MinPrice, withPrevious)
	cmp.MaxPrice = metricDelta(current.MaxPrice, previous.MaxPrice, withPrevious)
	cmp.AvgPrice = metricDelta(current.AvgPrice, previous.AvgPrice, withPrevious)
	return cmp
}

func metricDelta(current, previous float64, withPrevious bool) models.MetricDelta {
	d := models.MetricDelta{Value: current}
	if withPrevious && previous != 0 {
		rel := (current - previous) / previous
		d.Relative = &rel
	}
	return d
}

// TopPairs ranks base assets by total notional (sum of amount*price) over
// the current range, for one quote currency and order side. Rows are grouped
// by instrument id in the store and folded per base name here; instruments
// missing from the reference table fold into a single unresolved bucket.
func (a *windowedAggregator) TopPairs(ctx context.Context, w models.AggregationWindow, quoteName string, side models.OrderSide, limit int) ([]models.PairNotional, error) {
	rows, err := a.repo.NotionalByPair(ctx, w.CurrentRange(), quoteName, side)
	if err != nil {
		return nil, err
	}

	totals := map[string]float64{}
	var unknownTotal float64
	cache := newPairCache(a.dims)

	for _, row := range rows {
		base, _, ok, err := cache.lookup(ctx, row.PairID)
		if err != nil {
			return nil, err
		}
		if !ok {
			unknownTotal += row.TotalNotional
			continue
		}
		totals[base] += row.TotalNotional
	}

	out := make([]models.PairNotional, 0, len(totals)+1)
	for base, total := range totals {
		out = append(out, models.PairNotional{BaseName: base, Known: true, TotalNotional: total})
	}
	if unknownTotal > 0 {
		out = append(out, models.PairNotional{Known: false, TotalNotional: unknownTotal})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TotalNotional > out[j].TotalNotional })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// BreakdownBy counts trades per bucket of one dimension over the current
// range. The side breakdown excludes unknown sides in the store query; the
// other dimensions keep their unresolved bucket.
func (a *windowedAggregator) BreakdownBy(ctx context.Context, dim models.BreakdownDimension, w models.AggregationWindow, f models.StatsFilter) ([]models.BreakdownRow, error) {
	switch dim {
	case models.BreakdownByMarket:
		rows, err := a.repo.CountsByExchange(ctx, w.CurrentRange(), f)
		if err != nil {
			return nil, err
		}
		return a.foldCounts(ctx, rows, func(ctx context.Context, id int) (string, bool, error) {
			return a.dims.ExchangeName(ctx, id)
		})

	case models.BreakdownByQuote:
		rows, err := a.repo.CountsByPair(ctx, w.CurrentRange(), f)
		if err != nil {
			return nil, err
		}
		cache := newPairCache(a.dims)
		return a.foldCounts(ctx, rows, func(ctx context.Context, id int) (string, bool, error) {
			_, quote, ok, err := cache.lookup(ctx, id)
			return quote, ok, err
		})

	case models.BreakdownByOrderSide:
		rows, err := a.repo.CountsBySide(ctx, w.CurrentRange(), f)
		if err != nil {
			return nil, err
		}
		out := make([]models.BreakdownRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, models.BreakdownRow{Label: row.Side, Known: true, Count: row.Count})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown breakdown dimension %q", dim)
	}
}

// foldCounts resolves each id and merges counts per resolved label, with a
// single bucket for unresolved ids, ranked descending.
func (a *windowedAggregator) foldCounts(ctx context.Context, rows []storage.CountRow, resolve func(context.Context, int) (string, bool, error)) ([]models.BreakdownRow, error) {
	counts := map[string]int64{}
	var unknownCount int64

	for _, row := range rows {
		label, ok, err := resolve(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			unknownCount += row.Count
			continue
		}
		counts[label] += row.Count
	}

	out := make([]models.BreakdownRow, 0, len(counts)+1)
	for label, count := range counts {
		out = append(out, models.BreakdownRow{Label: label, Known: true, Count: count})
	}
	if unknownCount > 0 {
		out = append(out, models.BreakdownRow{Known: false, Count: unknownCount})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// PairsActivity returns per base/quote pair trade traffic over the current
// range, most active first.
func (a *windowedAggregator) PairsActivity(ctx context.Context, w models.AggregationWindow, limit int) ([]models.PairActivity, error) {
	rows, err := a.repo.PairActivity(ctx, w.CurrentRange(), limit)
	if err != nil {
		return nil, err
	}

	cache := newPairCache(a.dims)
	out := make([]models.PairActivity, 0, len(rows))
	for _, row := range rows {
		base, quote, ok, err := cache.lookup(ctx, row.PairID)
		if err != nil {
			return nil, err
		}
		// Unresolved pairs keep their row: unknown, not absent.
		out = append(out, models.PairActivity{
			BaseName:     base,
			QuoteName:    quote,
			Known:        ok,
			Transactions: row.Transactions,
			AmountTraded: row.AmountTraded,
			BiggestTrade: row.BiggestTrade,
			AverageTrade: row.AverageTrade,
		})
	}
	return out, nil
}

// AssetStats returns per base asset price statistics over the current range
// for one quote currency.
func (a *windowedAggregator) AssetStats(ctx context.Context, w models.AggregationWindow, quoteName string) ([]models.AssetStat, error) {
	rows, err := a.repo.AssetStatsByPair(ctx, w.CurrentRange(), quoteName)
	if err != nil {
		return nil, err
	}

	cache := newPairCache(a.dims)
	out := make([]models.AssetStat, 0, len(rows))
	for _, row := range rows {
		base, _, ok, err := cache.lookup(ctx, row.PairID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.AssetStat{
			BaseName:     base,
			Known:        ok,
			MinPrice:     row.MinPrice,
			AvgPrice:     row.AvgPrice,
			MaxPrice:     row.MaxPrice,
			Count:        row.Count,
			AmountTraded: row.AmountTraded,
		})
	}
	return out, nil
}

// LatestTrades returns the most recent trades with resolved display names.
// The market column resolves market id to its owning exchange through the
// markets table; the exchange column resolves the record's own exchange id.
// The two can disagree when upstream stamps mismatched ids on a record.
func (a *windowedAggregator) LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]models.LatestTrade, error) {
	rows, err := a.repo.LatestTrades(ctx, f, limit)
	if err != nil {
		return nil, err
	}

	cache := newPairCache(a.dims)
	exchanges := map[int]nameEntry{}
	markets := map[int]nameEntry{}

	resolveExchange := func(id int) (nameEntry, error) {
		if e, cached := exchanges[id]; cached {
			return e, nil
		}
		name, ok, err := a.dims.ExchangeName(ctx, id)
		if err != nil {
			return nameEntry{}, err
		}
		e := nameEntry{name: name, ok: ok}
		exchanges[id] = e
		return e, nil
	}
	resolveMarket := func(id int) (nameEntry, error) {
		if e, cached := markets[id]; cached {
			return e, nil
		}
		exchangeID, ok, err := a.dims.MarketExchange(ctx, id)
		if err != nil {
			return nameEntry{}, err
		}
		var e nameEntry
		if ok {
			if e, err = resolveExchange(exchangeID); err != nil {
				return nameEntry{}, err
			}
		}
		markets[id] = e
		return e, nil
	}

	out := make([]models.LatestTrade, 0, len(rows))
	for _, row := range rows {
		base, quote, pairOK, err := cache.lookup(ctx, row.PairID)
		if err != nil {
			return nil, err
		}
		mk, err := resolveMarket(row.MarketID)
		if err != nil {
			return nil, err
		}
		ex, err := resolveExchange(row.ExchangeID)
		if err != nil {
			return nil, err
		}

		out = append(out, models.LatestTrade{
			TimestampMillis: row.TimestampMillis,
			BaseName:        base,
			QuoteName:       quote,
			PairKnown:       pairOK,
			Market:          mk.name,
			MarketKnown:     mk.ok,
			Exchange:        ex.name,
			ExchangeKnown:   ex.ok,
			Amount:          row.Amount,
			Price:           row.Price,
			OrderSide:       row.OrderSide,
		})
	}
	return out, nil
}

// ActiveQuotes lists the most traded quote currencies across the whole log.
// Unresolved instruments are excluded here: the listing feeds filter
// dropdowns, where an unknown name is not selectable.
func (a *windowedAggregator) ActiveQuotes(ctx context.Context, limit int) ([]models.DimensionCount, error) {
	return a.activeDimension(ctx, limit, func(base, quote string) string { return quote })
}

// ActiveBases lists the most traded base assets across the whole log, with
// the same exclusion of unresolved instruments as ActiveQuotes.
func (a *windowedAggregator) ActiveBases(ctx context.Context, limit int) ([]models.DimensionCount, error) {
	return a.activeDimension(ctx, limit, func(base, quote string) string { return base })
}

func (a *windowedAggregator) activeDimension(ctx context.Context, limit int, pick func(base, quote string) string) ([]models.DimensionCount, error) {
	rows, err := a.repo.ActivePairCounts(ctx, activeScanSize(limit))
	if err != nil {
		return nil, err
	}

	cache := newPairCache(a.dims)
	counts := map[string]int64{}
	for _, row := range rows {
		base, quote, ok, err := cache.lookup(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		counts[pick(base, quote)] += row.Count
	}

	out := make([]models.DimensionCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, models.DimensionCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// activePairScan is the minimum number of instruments the dimension listings
// fold over.
const activePairScan = 500

// activeScanSize overshoots the requested listing size, since many
// instruments fold into one name. The scan is still a cutoff: a name whose
// pairs all trade below it is undercounted or missed entirely, which is
// acceptable for a most-active listing.
func activeScanSize(limit int) int {
	if scan := limit * 20; scan > activePairScan {
		return scan
	}
	return activePairScan
}

// nameEntry is one memoized dimension lookup result.
type nameEntry struct {
	name string
	ok   bool
}

// pairCache memoizes pair lookups within one request, so listings that
// touch many rows of the same instrument do one point lookup per id.
type pairCache struct {
	dims    storage.DimensionResolver
	entries map[int]pairEntry
}

type pairEntry struct {
	base, quote string
	ok          bool
}

func newPairCache(dims storage.DimensionResolver) *pairCache {
	return &pairCache{dims: dims, entries: map[int]pairEntry{}}
}

func (c *pairCache) lookup(ctx context.Context, id int) (string, string, bool, error) {
	if e, ok := c.entries[id]; ok {
		return e.base, e.quote, e.ok, nil
	}
	base, quote, ok, err := c.dims.PairNames(ctx, id)
	if err != nil {
		return "", "", false, err
	}
	c.entries[id] = pairEntry{base: base, quote: quote, ok: ok}
	return base, quote, ok, nil
}
