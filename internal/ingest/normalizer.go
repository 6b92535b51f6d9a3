package ingest

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
)

// ErrMalformedUpdate reports a market update that cannot be turned into
// canonical trade records. Malformed updates are dropped as a unit, never
// partially published.
var ErrMalformedUpdate = errors.New("malformed market update")

// Normalize flattens one upstream market update into canonical trade records,
// one per fill, with the market's ids stamped onto each record.
//
// Timestamps prefer the nanosecond field when upstream provides it; tsMs is
// derived from it, otherwise from the second-resolution timestamp. The
// upstream order side codes BUYSIDE and SELLSIDE map to BUY and SELL; anything
// else, including an absent side, maps to UNKNOWN.
func Normalize(update models.MarketUpdate) ([]models.TradeRecord, error) {
	if update.Market == nil {
		return nil, fmt.Errorf("%w: missing market descriptor", ErrMalformedUpdate)
	}

	pairID, err := parseID("currencyPairId", update.Market.CurrencyPairID)
	if err != nil {
		return nil, err
	}
	marketID, err := parseID("marketId", update.Market.MarketID)
	if err != nil {
		return nil, err
	}
	exchangeID, err := parseID("exchangeId", update.Market.ExchangeID)
	if err != nil {
		return nil, err
	}

	records := make([]models.TradeRecord, 0, len(update.Trades))
	for i, fill := range update.Trades {
		rec, err := normalizeFill(fill)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		rec.InstrumentID = pairID
		rec.MarketID = marketID
		rec.ExchangeID = exchangeID
		records = append(records, rec)
	}
	return records, nil
}

func normalizeFill(fill models.Fill) (models.TradeRecord, error) {
	ts, err := strconv.ParseInt(fill.Timestamp, 10, 64)
	if err != nil || ts <= 0 {
		return models.TradeRecord{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedUpdate, fill.Timestamp)
	}

	amount, err := parsePositive("amount", fill.AmountStr)
	if err != nil {
		return models.TradeRecord{}, err
	}
	price, err := parsePositive("price", fill.PriceStr)
	if err != nil {
		return models.TradeRecord{}, err
	}

	rec := models.TradeRecord{
		Timestamp:       ts,
		TimestampMillis: ts * 1000,
		Amount:          amount,
		Price:           price,
		OrderSide:       normalizeSide(fill.OrderSide),
	}

	if fill.TimestampNano != "" {
		nanos, err := strconv.ParseInt(fill.TimestampNano, 10, 64)
		if err != nil || nanos < 0 {
			return models.TradeRecord{}, fmt.Errorf("%w: bad timestampNano %q", ErrMalformedUpdate, fill.TimestampNano)
		}
		rec.TimestampNanos = nanos
		rec.TimestampMillis = nanos / int64(1e6)
	}
	return rec, nil
}

func normalizeSide(side string) models.OrderSide {
	switch side {
	case "BUYSIDE":
		return models.OrderSideBuy
	case "SELLSIDE":
		return models.OrderSideSell
	default:
		return models.OrderSideUnknown
	}
}

func parseID(field, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: bad %s %q", ErrMalformedUpdate, field, raw)
	}
	return id, nil
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: bad %s %q", ErrMalformedUpdate, field, raw)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: non-positive %s %q", ErrMalformedUpdate, field, raw)
	}
	return d, nil
}
