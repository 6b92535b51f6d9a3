package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderSide_Codes(t *testing.T) {
	cases := []struct {
		in   string
		want OrderSide
	}{
		{"BUY", OrderSideBuy},
		{"SELL", OrderSideSell},
		{"UNKNOWN", OrderSideUnknown},
		{"", OrderSideUnknown},
		{"garbage", OrderSideUnknown},
	}
	for _, tc := range cases {
		if got := ParseOrderSide(tc.in); got != tc.want {
			t.Fatalf("ParseOrderSide(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if OrderSideBuy.String() != "BUY" || OrderSideSell.String() != "SELL" || OrderSideUnknown.String() != "UNKNOWN" {
		t.Fatalf("unexpected wire codes")
	}
}

func TestTradeRecord_WireFormat(t *testing.T) {
	rec := TradeRecord{
		Timestamp:       1667476800,
		TimestampMillis: 1667476800123,
		TimestampNanos:  1667476800123000000,
		InstrumentID:    232,
		Amount:          decimal.RequireFromString("1.5"),
		Price:           decimal.RequireFromString("20000.25"),
		MarketID:        87,
		ExchangeID:      4,
		OrderSide:       OrderSideBuy,
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// The published payload is a flat key-value object using the canonical
	// schema names the column store expects.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	for _, key := range []string{"ts", "tsMs", "tsNano", "currencyPairId", "amount", "price", "marketId", "exchangeId", "orderSide"} {
		if _, ok := flat[key]; !ok {
			t.Fatalf("payload missing canonical key %q: %s", key, raw)
		}
	}

	var back TradeRecord
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if back.InstrumentID != 232 || back.OrderSide != OrderSideBuy || !back.Amount.Equal(rec.Amount) {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if back.Key() != "232" {
		t.Fatalf("key = %q, want instrument id as string", back.Key())
	}
}
