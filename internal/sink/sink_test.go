package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/storage"
)

// fakeReader serves queued messages, then blocks until the fetch context
// expires the way a quiet partition would.
type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

// batchRepo records InsertTradesBatch calls.
type batchRepo struct {
	storage.TradesRepository
	batches   [][]models.TradeRecord
	insertErr error
}

func (r *batchRepo) InsertTradesBatch(ctx context.Context, trades []models.TradeRecord) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	batch := make([]models.TradeRecord, len(trades))
	copy(batch, trades)
	r.batches = append(r.batches, batch)
	return nil
}

func tradeMessage(t *testing.T, instrumentID int) kafka.Message {
	t.Helper()
	rec := models.TradeRecord{
		Timestamp:       1602432215,
		TimestampMillis: 1602432215000,
		InstrumentID:    instrumentID,
		OrderSide:       models.OrderSideBuy,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(rec.Key()), Value: payload}
}

func newTestSink(reader *fakeReader, repo *batchRepo, opts ...Option) *Sink {
	s := &Sink{
		reader:        reader,
		repo:          repo,
		batchSize:     500,
		flushInterval: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func TestRun_FlushesOnBatchSize(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		tradeMessage(t, 1), tradeMessage(t, 2), tradeMessage(t, 3),
	}}
	repo := &batchRepo{}
	s := newTestSink(reader, repo, WithBatchSize(2))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}

	if len(repo.batches) != 2 {
		t.Fatalf("got %d batches, want 2 (size flush + final flush): %+v", len(repo.batches), repo.batches)
	}
	if len(repo.batches[0]) != 2 || len(repo.batches[1]) != 1 {
		t.Errorf("batch sizes = %d/%d, want 2/1", len(repo.batches[0]), len(repo.batches[1]))
	}
	if len(reader.committed) != 3 {
		t.Errorf("committed %d messages, want 3", len(reader.committed))
	}
	if !reader.closed {
		t.Error("reader not closed")
	}
}

func TestRun_FlushesOnInterval(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{tradeMessage(t, 1)}}
	repo := &batchRepo{}
	s := newTestSink(reader, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	if len(repo.batches) == 0 {
		t.Fatal("partial batch never flushed")
	}
	if len(repo.batches[0]) != 1 || repo.batches[0][0].InstrumentID != 1 {
		t.Errorf("first batch = %+v, want one record for instrument 1", repo.batches[0])
	}
}

func TestRun_SkipsUndecodablePayloads(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Key: []byte("9"), Value: []byte("not json")},
		tradeMessage(t, 2),
	}}
	repo := &batchRepo{}
	s := newTestSink(reader, repo, WithBatchSize(1))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	for _, batch := range repo.batches {
		for _, rec := range batch {
			if rec.InstrumentID != 2 {
				t.Errorf("stored unexpected record %+v", rec)
			}
		}
	}
	// The poison message is still committed so it never replays.
	if len(reader.committed) != 2 {
		t.Errorf("committed %d messages, want 2", len(reader.committed))
	}
}

func TestRun_StoreErrorIsFatal(t *testing.T) {
	wantErr := errors.New("store unavailable")
	reader := &fakeReader{queue: []kafka.Message{tradeMessage(t, 1)}}
	repo := &batchRepo{insertErr: wantErr}
	s := newTestSink(reader, repo, WithBatchSize(1))

	if err := s.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if len(reader.committed) != 0 {
		t.Errorf("committed %d messages after failed store, want 0", len(reader.committed))
	}
}
