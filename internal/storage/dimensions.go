package storage

import (
	"context"
	"database/sql"
	"errors"
)

// DimensionResolver resolves the foreign-key ids embedded in trade records to
// display names via the reference tables, without physical joins.
//
// A missing id is not an error: every method reports presence explicitly
// through its ok return. Callers must treat ok == false as "unknown" and must
// not silently drop such rows; the display sentinel exists only at the API
// boundary.
type DimensionResolver interface {
	PairNames(ctx context.Context, id int) (base string, quote string, ok bool, err error)
	MarketExchange(ctx context.Context, id int) (exchangeID int, ok bool, err error)
	ExchangeName(ctx context.Context, id int) (name string, ok bool, err error)
}

type dimensionResolver struct {
	db *sql.DB
}

// NewDimensionResolver wraps an open handle to the reference tables.
func NewDimensionResolver(db *sql.DB) DimensionResolver {
	return &dimensionResolver{db: db}
}

// PairNames looks up the base and quote asset names of one instrument.
func (d *dimensionResolver) PairNames(ctx context.Context, id int) (string, string, bool, error) {
	var base, quote string
	err := d.db.QueryRowContext(ctx,
		`SELECT base_name, quote_name FROM pairs WHERE id = $1`, id,
	).Scan(&base, &quote)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return base, quote, true, nil
}

// MarketExchange looks up the exchange id a market belongs to.
func (d *dimensionResolver) MarketExchange(ctx context.Context, id int) (int, bool, error) {
	var exchangeID int
	err := d.db.QueryRowContext(ctx,
		`SELECT exchange FROM markets WHERE id = $1`, id,
	).Scan(&exchangeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return exchangeID, true, nil
}

// ExchangeName looks up the display name of one exchange.
func (d *dimensionResolver) ExchangeName(ctx context.Context, id int) (string, bool, error) {
	var name string
	err := d.db.QueryRowContext(ctx,
		`SELECT name FROM exchanges WHERE id = $1`, id,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
