package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockResolver(t *testing.T) (*dimensionResolver, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	return &dimensionResolver{db: db}, mock, func() { _ = db.Close() }
}

func TestPairNames_SQLMock(t *testing.T) {
	res, mock, done := newMockResolver(t)
	defer done()

	query := regexp.QuoteMeta("SELECT base_name, quote_name FROM pairs WHERE id = $1")

	// hit
	mock.ExpectQuery(query).WithArgs(232).
		WillReturnRows(sqlmock.NewRows([]string{"base_name", "quote_name"}).AddRow("Bitcoin", "United States Dollar"))
	base, quote, ok, err := res.PairNames(context.Background(), 232)
	if err != nil || !ok || base != "Bitcoin" || quote != "United States Dollar" {
		t.Fatalf("unexpected: base=%q quote=%q ok=%v err=%v", base, quote, ok, err)
	}

	// miss: absent id is ok=false, never an error
	mock.ExpectQuery(query).WithArgs(999).
		WillReturnRows(sqlmock.NewRows([]string{"base_name", "quote_name"}))
	_, _, ok, err = res.PairNames(context.Background(), 999)
	if err != nil || ok {
		t.Fatalf("missing id must be ok=false, nil error; got ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarketExchange_SQLMock(t *testing.T) {
	res, mock, done := newMockResolver(t)
	defer done()

	query := regexp.QuoteMeta("SELECT exchange FROM markets WHERE id = $1")

	mock.ExpectQuery(query).WithArgs(87).
		WillReturnRows(sqlmock.NewRows([]string{"exchange"}).AddRow(4))
	id, ok, err := res.MarketExchange(context.Background(), 87)
	if err != nil || !ok || id != 4 {
		t.Fatalf("unexpected: id=%d ok=%v err=%v", id, ok, err)
	}

	mock.ExpectQuery(query).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exchange"}))
	_, ok, err = res.MarketExchange(context.Background(), 1)
	if err != nil || ok {
		t.Fatalf("missing id must be ok=false, nil error; got ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExchangeName_SQLMock(t *testing.T) {
	res, mock, done := newMockResolver(t)
	defer done()

	query := regexp.QuoteMeta("SELECT name FROM exchanges WHERE id = $1")

	mock.ExpectQuery(query).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Kraken"))
	name, ok, err := res.ExchangeName(context.Background(), 4)
	if err != nil || !ok || name != "Kraken" {
		t.Fatalf("unexpected: name=%q ok=%v err=%v", name, ok, err)
	}

	mock.ExpectQuery(query).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	_, ok, err = res.ExchangeName(context.Background(), 5)
	if err != nil || ok {
		t.Fatalf("missing id must be ok=false, nil error; got ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
