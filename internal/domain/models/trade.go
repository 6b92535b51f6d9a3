package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSide indicates which side of the book initiated a fill.
type OrderSide int

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// String returns the canonical wire code for the side.
func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderSide maps a wire code back to an OrderSide.
// Anything unrecognized (including the empty string) is UNKNOWN, never an error:
// upstream omits the side on some markets.
func ParseOrderSide(s string) OrderSide {
	switch s {
	case "BUY":
		return OrderSideBuy
	case "SELL":
		return OrderSideSell
	default:
		return OrderSideUnknown
	}
}

// MarshalJSON encodes the side as its wire code.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a wire code, defaulting to UNKNOWN.
func (s *OrderSide) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("order side: invalid JSON value %s", b)
	}
	*s = ParseOrderSide(string(b[1 : len(b)-1]))
	return nil
}

// TradeRecord is one executed fill, flattened to the canonical schema that is
// published onto the trade log and stored in the column store.
//
// Records are immutable once published. TimestampMillis is event time; it is
// non-decreasing per instrument but carries no global ordering guarantee.
type TradeRecord struct {
	Timestamp       int64           `json:"ts"`     // event time, seconds
	TimestampMillis int64           `json:"tsMs"`   // event time, milliseconds
	TimestampNanos  int64           `json:"tsNano"` // event time, nanoseconds (0 when upstream omits it)
	InstrumentID    int             `json:"currencyPairId"`
	Amount          decimal.Decimal `json:"amount"`
	Price           decimal.Decimal `json:"price"`
	MarketID        int             `json:"marketId"`
	ExchangeID      int             `json:"exchangeId"`
	OrderSide       OrderSide       `json:"orderSide"`
}

// Key returns the partition key for the trade log. All records of one
// instrument share a key, so they stay ordered relative to each other.
func (t TradeRecord) Key() string {
	return fmt.Sprintf("%d", t.InstrumentID)
}

// MarketDescriptor identifies the market a batch of fills was executed on,
// as delivered by the upstream vendor (ids arrive as decimal strings).
type MarketDescriptor struct {
	CurrencyPairID string `json:"currencyPairId"`
	MarketID       string `json:"marketId"`
	ExchangeID     string `json:"exchangeId"`
}

// Fill is one executed trade inside a MarketUpdate, still in the upstream
// vendor schema. The frames are protobuf JSON, which renders every int64 as a
// decimal string, so both timestamps arrive as strings alongside the price
// and amount.
type Fill struct {
	Timestamp     string `json:"timestamp"` // seconds
	PriceStr      string `json:"priceStr"`
	AmountStr     string `json:"amountStr"`
	TimestampNano string `json:"timestampNano"`
	OrderSide     string `json:"orderSide"` // BUYSIDE | SELLSIDE | empty
}

// MarketUpdate is one upstream unit of work: a market descriptor plus zero or
// more fills. It is consumed once by the normalizer and then discarded.
type MarketUpdate struct {
	Market *MarketDescriptor `json:"market"`
	Trades []Fill            `json:"trades"`
}
