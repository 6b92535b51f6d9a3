package ingest

import (
	"errors"
	"testing"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
)

func validUpdate() models.MarketUpdate {
	return models.MarketUpdate{
		Market: &models.MarketDescriptor{
			CurrencyPairID: "232",
			MarketID:       "86",
			ExchangeID:     "4",
		},
		Trades: []models.Fill{
			{
				Timestamp:     "1602432215",
				PriceStr:      "11355.3",
				AmountStr:     "0.0445",
				TimestampNano: "1602432215182816187",
				OrderSide:     "SELLSIDE",
			},
		},
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(validUpdate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}

	rec := got[0]
	if rec.InstrumentID != 232 || rec.MarketID != 86 || rec.ExchangeID != 4 {
		t.Errorf("ids = %d/%d/%d, want 232/86/4", rec.InstrumentID, rec.MarketID, rec.ExchangeID)
	}
	if rec.Timestamp != 1602432215 {
		t.Errorf("ts = %d, want 1602432215", rec.Timestamp)
	}
	if rec.TimestampMillis != 1602432215182 {
		t.Errorf("tsMs = %d, want 1602432215182", rec.TimestampMillis)
	}
	if rec.TimestampNanos != 1602432215182816187 {
		t.Errorf("tsNano = %d, want 1602432215182816187", rec.TimestampNanos)
	}
	if rec.Price.String() != "11355.3" || rec.Amount.String() != "0.0445" {
		t.Errorf("price/amount = %s/%s", rec.Price, rec.Amount)
	}
	if rec.OrderSide != models.OrderSideSell {
		t.Errorf("side = %v, want SELL", rec.OrderSide)
	}
}

func TestNormalize_MillisFallsBackToSeconds(t *testing.T) {
	update := validUpdate()
	update.Trades[0].TimestampNano = ""

	got, err := Normalize(update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].TimestampMillis != 1602432215000 {
		t.Errorf("tsMs = %d, want 1602432215000", got[0].TimestampMillis)
	}
	if got[0].TimestampNanos != 0 {
		t.Errorf("tsNano = %d, want 0", got[0].TimestampNanos)
	}
}

func TestNormalize_Sides(t *testing.T) {
	tests := []struct {
		in   string
		want models.OrderSide
	}{
		{"BUYSIDE", models.OrderSideBuy},
		{"SELLSIDE", models.OrderSideSell},
		{"", models.OrderSideUnknown},
		{"ASKSIDE", models.OrderSideUnknown},
	}
	for _, tc := range tests {
		update := validUpdate()
		update.Trades[0].OrderSide = tc.in
		got, err := Normalize(update)
		if err != nil {
			t.Fatalf("side %q: unexpected error: %v", tc.in, err)
		}
		if got[0].OrderSide != tc.want {
			t.Errorf("side %q = %v, want %v", tc.in, got[0].OrderSide, tc.want)
		}
	}
}

func TestNormalize_EmptyTrades(t *testing.T) {
	update := validUpdate()
	update.Trades = nil

	got, err := Normalize(update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *models.MarketUpdate)
	}{
		{"missing market", func(u *models.MarketUpdate) { u.Market = nil }},
		{"bad pair id", func(u *models.MarketUpdate) { u.Market.CurrencyPairID = "btcusd" }},
		{"bad market id", func(u *models.MarketUpdate) { u.Market.MarketID = "" }},
		{"bad exchange id", func(u *models.MarketUpdate) { u.Market.ExchangeID = "-4" }},
		{"zero timestamp", func(u *models.MarketUpdate) { u.Trades[0].Timestamp = "0" }},
		{"empty timestamp", func(u *models.MarketUpdate) { u.Trades[0].Timestamp = "" }},
		{"bad timestamp", func(u *models.MarketUpdate) { u.Trades[0].Timestamp = "now" }},
		{"bad price", func(u *models.MarketUpdate) { u.Trades[0].PriceStr = "n/a" }},
		{"zero price", func(u *models.MarketUpdate) { u.Trades[0].PriceStr = "0" }},
		{"negative amount", func(u *models.MarketUpdate) { u.Trades[0].AmountStr = "-1" }},
		{"bad nanos", func(u *models.MarketUpdate) { u.Trades[0].TimestampNano = "latest" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			update := validUpdate()
			tc.mutate(&update)
			if _, err := Normalize(update); !errors.Is(err, ErrMalformedUpdate) {
				t.Fatalf("error = %v, want ErrMalformedUpdate", err)
			}
		})
	}
}

func TestNormalize_OneBadFillDropsWholeUpdate(t *testing.T) {
	update := validUpdate()
	update.Trades = append(update.Trades, models.Fill{
		Timestamp: "1602432216",
		PriceStr:  "broken",
		AmountStr: "1",
	})

	if _, err := Normalize(update); !errors.Is(err, ErrMalformedUpdate) {
		t.Fatalf("error = %v, want ErrMalformedUpdate", err)
	}
}
