package storage

import (
	"context"
	"database/sql"
	"fmt"

	pq "github.com/lib/pq"
	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
)

// Row types returned by the repository. They carry raw dimension ids; name
// resolution happens in the service layer through the DimensionResolver, the
// same way the column store resolves lookups without physical joins.

// PairNotionalRow is sum(amount*price) attributed to one instrument.
type PairNotionalRow struct {
	PairID        int
	TotalNotional float64
}

// CountRow is a trade count attributed to one dimension id.
type CountRow struct {
	ID    int
	Count int64
}

// SideCountRow is a trade count attributed to one order side.
type SideCountRow struct {
	Side  string
	Count int64
}

// PairActivityRow is per-instrument trade traffic over a window.
type PairActivityRow struct {
	PairID       int
	Transactions int64
	AmountTraded float64
	BiggestTrade float64
	AverageTrade float64
}

// AssetStatRow is per-instrument price statistics over a window.
type AssetStatRow struct {
	PairID       int
	MinPrice     float64
	AvgPrice     float64
	MaxPrice     float64
	Count        int64
	AmountTraded float64
}

// TradeRow is one stored trade record with raw ids.
type TradeRow struct {
	TimestampMillis int64
	PairID          int
	Amount          float64
	Price           float64
	MarketID        int
	ExchangeID      int
	OrderSide       string
}

// TradesRepository defines the contract for reading and writing the trade
// log's materialized view in the column store.
//
// Every read takes an explicit models.TimeRange with exclusive-low /
// inclusive-high semantics (ts_ms > from AND ts_ms <= to). Dimension-name
// filters are translated to id-set-membership subqueries against the pairs
// reference table: trade rows carry only ids.
type TradesRepository interface {
	InsertTradesBatch(ctx context.Context, trades []models.TradeRecord) error
	PeriodStats(ctx context.Context, r models.TimeRange, f models.StatsFilter) (models.PeriodStats, error)
	NotionalByPair(ctx context.Context, r models.TimeRange, quoteName string, side models.OrderSide) ([]PairNotionalRow, error)
	CountsByExchange(ctx context.Context, r models.TimeRange, f models.StatsFilter) ([]CountRow, error)
	CountsByPair(ctx context.Context, r models.TimeRange, f models.StatsFilter) ([]CountRow, error)
	CountsBySide(ctx context.Context, r models.TimeRange, f models.StatsFilter) ([]SideCountRow, error)
	PairActivity(ctx context.Context, r models.TimeRange, limit int) ([]PairActivityRow, error)
	AssetStatsByPair(ctx context.Context, r models.TimeRange, quoteName string) ([]AssetStatRow, error)
	LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]TradeRow, error)
	ActivePairCounts(ctx context.Context, limit int) ([]CountRow, error)
}

type tradesRepository struct {
	db *sql.DB
}

// NewTradesRepository wraps an open column store handle.
func NewTradesRepository(db *sql.DB) TradesRepository {
	return &tradesRepository{db: db}
}

// InsertTradesBatch loads a batch of trade records in a single transaction
// using the Postgres COPY protocol. Used by the trade-log sink.
func (r *tradesRepository) InsertTradesBatch(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"trades",
		"ts",
		"ts_ms",
		"ts_nano",
		"currency_pair_id",
		"amount",
		"price",
		"market_id",
		"exchange_id",
		"order_side",
	))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, rec := range trades {
		if _, err := stmt.ExecContext(ctx,
			rec.Timestamp,
			rec.TimestampMillis,
			rec.TimestampNanos,
			rec.InstrumentID,
			rec.Amount,
			rec.Price,
			rec.MarketID,
			rec.ExchangeID,
			rec.OrderSide.String(),
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// whereClause builds the window predicate plus optional dimension-name
// filters. $1/$2 are always the range bounds; name filters append id-set
// subqueries with subsequent positional placeholders.
func whereClause(r models.TimeRange, f models.StatsFilter) (string, []interface{}) {
	conditions := "ts_ms > $1 AND ts_ms <= $2"
	args := []interface{}{r.FromMillis, r.ToMillis}

	if f.BaseName != "" {
		placeholder := len(args) + 1
		conditions += fmt.Sprintf(" AND currency_pair_id IN (SELECT id FROM pairs WHERE base_name = $%d)", placeholder)
		args = append(args, f.BaseName)
	}
	if f.QuoteName != "" {
		placeholder := len(args) + 1
		conditions += fmt.Sprintf(" AND currency_pair_id IN (SELECT id FROM pairs WHERE quote_name = $%d)", placeholder)
		args = append(args, f.QuoteName)
	}

	return conditions, args
}

// PeriodStats computes the fixed statistic set over one range. A range with
// no matching rows yields Count == 0 and zeroed metrics; the aggregate
// columns come back as SQL NULLs and are deliberately not propagated.
func (r *tradesRepository) PeriodStats(ctx context.Context, rng models.TimeRange, f models.StatsFilter) (models.PeriodStats, error) {
	conditions, args := whereClause(rng, f)

	query := fmt.Sprintf(`
		SELECT COUNT(*) AS count,
		       SUM(amount) AS amount_traded,
		       MIN(price) AS min_price,
		       MAX(price) AS max_price,
		       AVG(price) AS avg_price
		FROM trades
		WHERE %s
	`, conditions)

	var (
		stats        models.PeriodStats
		amountTraded sql.NullFloat64
		minPrice     sql.NullFloat64
		maxPrice     sql.NullFloat64
		avgPrice     sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.Count, &amountTraded, &minPrice, &maxPrice, &avgPrice)
	if err != nil {
		return models.PeriodStats{}, err
	}

	if stats.Count == 0 {
		// Empty window: a typed no-data result, never NULL/NaN averages.
		return models.PeriodStats{}, nil
	}

	stats.AmountTraded = amountTraded.Float64
	stats.MinPrice = minPrice.Float64
	stats.MaxPrice = maxPrice.Float64
	stats.AvgPrice = avgPrice.Float64
	return stats, nil
}

// NotionalByPair ranks instruments by total traded value (sum of
// amount*price) over the range, restricted to one quote currency and one
// order side.
func (r *tradesRepository) NotionalByPair(ctx context.Context, rng models.TimeRange, quoteName string, side models.OrderSide) ([]PairNotionalRow, error) {
	conditions, args := whereClause(rng, models.StatsFilter{QuoteName: quoteName})
	placeholder := len(args) + 1
	conditions += fmt.Sprintf(" AND order_side = $%d", placeholder)
	args = append(args, side.String())

	query := fmt.Sprintf(`
		SELECT currency_pair_id, SUM(amount * price) AS total_notional
		FROM trades
		WHERE %s
		GROUP BY currency_pair_id
		ORDER BY total_notional DESC
	`, conditions)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PairNotionalRow
	for rows.Next() {
		var row PairNotionalRow
		if err := rows.Scan(&row.PairID, &row.TotalNotional); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountsByExchange groups trade counts by exchange id over the range.
func (r *tradesRepository) CountsByExchange(ctx context.Context, rng models.TimeRange, f models.StatsFilter) ([]CountRow, error) {
	conditions, args := whereClause(rng, f)

	query := fmt.Sprintf(`
		SELECT exchange_id, COUNT(*) AS count
		FROM trades
		WHERE %s
		GROUP BY exchange_id
		ORDER BY count DESC
	`, conditions)

	return r.queryCounts(ctx, query, args)
}

// CountsByPair groups trade counts by instrument id over the range.
func (r *tradesRepository) CountsByPair(ctx context.Context, rng models.TimeRange, f models.StatsFilter) ([]CountRow, error) {
	conditions, args := whereClause(rng, f)

	query := fmt.Sprintf(`
		SELECT currency_pair_id, COUNT(*) AS count
		FROM trades
		WHERE %s
		GROUP BY currency_pair_id
		ORDER BY count DESC
	`, conditions)

	return r.queryCounts(ctx, query, args)
}

// CountsBySide groups trade counts by order side over the range. Records
// with an unknown side are excluded here, and only here: this mirrors the
// one query of the catalogue that explicitly filters the sentinel.
func (r *tradesRepository) CountsBySide(ctx context.Context, rng models.TimeRange, f models.StatsFilter) ([]SideCountRow, error) {
	conditions, args := whereClause(rng, f)

	query := fmt.Sprintf(`
		SELECT order_side, COUNT(*) AS count
		FROM trades
		WHERE %s AND order_side != 'UNKNOWN'
		GROUP BY order_side
		ORDER BY count DESC
	`, conditions)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SideCountRow
	for rows.Next() {
		var row SideCountRow
		if err := rows.Scan(&row.Side, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PairActivity returns per-instrument traffic over the range, most active
// first.
func (r *tradesRepository) PairActivity(ctx context.Context, rng models.TimeRange, limit int) ([]PairActivityRow, error) {
	conditions, args := whereClause(rng, models.StatsFilter{})
	placeholder := len(args) + 1
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT currency_pair_id,
		       COUNT(*) AS transactions,
		       SUM(amount) AS amount_traded,
		       MAX(amount) AS biggest_trade,
		       AVG(amount) AS average_trade
		FROM trades
		WHERE %s
		GROUP BY currency_pair_id
		ORDER BY transactions DESC
		LIMIT $%d
	`, conditions, placeholder)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PairActivityRow
	for rows.Next() {
		var row PairActivityRow
		if err := rows.Scan(&row.PairID, &row.Transactions, &row.AmountTraded, &row.BiggestTrade, &row.AverageTrade); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AssetStatsByPair returns per-instrument price statistics over the range
// for one quote currency, most traded first.
func (r *tradesRepository) AssetStatsByPair(ctx context.Context, rng models.TimeRange, quoteName string) ([]AssetStatRow, error) {
	conditions, args := whereClause(rng, models.StatsFilter{QuoteName: quoteName})

	query := fmt.Sprintf(`
		SELECT currency_pair_id,
		       MIN(price) AS min_price,
		       AVG(price) AS avg_price,
		       MAX(price) AS max_price,
		       COUNT(*) AS count,
		       SUM(amount) AS amount_traded
		FROM trades
		WHERE %s
		GROUP BY currency_pair_id
		ORDER BY count DESC
	`, conditions)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AssetStatRow
	for rows.Next() {
		var row AssetStatRow
		if err := rows.Scan(&row.PairID, &row.MinPrice, &row.AvgPrice, &row.MaxPrice, &row.Count, &row.AmountTraded); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LatestTrades returns the most recent trades, newest first. The filter
// narrows by base/quote name through the pairs reference table.
func (r *tradesRepository) LatestTrades(ctx context.Context, f models.StatsFilter, limit int) ([]TradeRow, error) {
	conditions := "TRUE"
	var args []interface{}

	if f.BaseName != "" {
		placeholder := len(args) + 1
		conditions += fmt.Sprintf(" AND currency_pair_id IN (SELECT id FROM pairs WHERE base_name = $%d)", placeholder)
		args = append(args, f.BaseName)
	}
	if f.QuoteName != "" {
		placeholder := len(args) + 1
		conditions += fmt.Sprintf(" AND currency_pair_id IN (SELECT id FROM pairs WHERE quote_name = $%d)", placeholder)
		args = append(args, f.QuoteName)
	}

	placeholder := len(args) + 1
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT ts_ms, currency_pair_id, amount, price, market_id, exchange_id, order_side
		FROM trades
		WHERE %s
		ORDER BY ts_ms DESC
		LIMIT $%d
	`, conditions, placeholder)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TradeRow
	for rows.Next() {
		var row TradeRow
		if err := rows.Scan(&row.TimestampMillis, &row.PairID, &row.Amount, &row.Price, &row.MarketID, &row.ExchangeID, &row.OrderSide); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ActivePairCounts returns trade counts per instrument across the whole
// log, most active first. The service layer folds these into the
// most-active base and quote listings.
func (r *tradesRepository) ActivePairCounts(ctx context.Context, limit int) ([]CountRow, error) {
	query := `
		SELECT currency_pair_id, COUNT(*) AS count
		FROM trades
		GROUP BY currency_pair_id
		ORDER BY count DESC
		LIMIT $1
	`
	return r.queryCounts(ctx, query, []interface{}{limit})
}

func (r *tradesRepository) queryCounts(ctx context.Context, query string, args []interface{}) ([]CountRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CountRow
	for rows.Next() {
		var row CountRow
		if err := rows.Scan(&row.ID, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
