package sink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/logger"
	"github.com/mneedham/pinot-cryptowatch/internal/storage"
)

// messageReader is the slice of kafka.Reader the sink uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink drains the trade log into the column store. It batches records up to
// batchSize or flushInterval, whichever comes first, and commits consumer
// offsets only after the batch is stored, so a crash replays rather than
// loses records.
//
// Payloads that do not decode are logged, skipped, and committed with their
// batch; a poison record must not wedge the partition.
type Sink struct {
	reader        messageReader
	repo          storage.TradesRepository
	batchSize     int
	flushInterval time.Duration
}

// Option tweaks sink behavior.
type Option func(*Sink)

// WithBatchSize overrides the record count that forces a flush.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushInterval overrides the age that forces a flush of a partial batch.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// NewSink builds a consumer-group sink for the given brokers and topic.
func NewSink(brokers []string, topic, groupID string, repo storage.TradesRepository, opts ...Option) *Sink {
	s := &Sink{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		repo:          repo,
		batchSize:     500,
		flushInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes until the context is cancelled, flushing the partial batch on
// the way out. Store errors are fatal; uncommitted records replay on restart.
func (s *Sink) Run(ctx context.Context) error {
	defer func() { _ = s.reader.Close() }()

	var (
		records  []models.TradeRecord
		messages []kafka.Message
		deadline = time.Now().Add(s.flushInterval)
	)

	flush := func(flushCtx context.Context) error {
		if len(messages) == 0 {
			deadline = time.Now().Add(s.flushInterval)
			return nil
		}
		if err := s.repo.InsertTradesBatch(flushCtx, records); err != nil {
			return err
		}
		if err := s.reader.CommitMessages(flushCtx, messages...); err != nil {
			return err
		}
		logger.L().Debug().Int("records", len(records)).Msg("stored trade batch")
		records = records[:0]
		messages = messages[:0]
		deadline = time.Now().Add(s.flushInterval)
		return nil
	}

	for {
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := s.reader.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			messages = append(messages, msg)
			var rec models.TradeRecord
			if decodeErr := json.Unmarshal(msg.Value, &rec); decodeErr != nil {
				logger.L().Warn().
					Err(decodeErr).
					Str("key", string(msg.Key)).
					Msg("skipping undecodable trade log record")
			} else {
				records = append(records, rec)
			}
			if len(records) >= s.batchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}

		case ctx.Err() != nil:
			// Shutdown: store what we have with a grace period.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := flush(flushCtx); err != nil {
				logger.L().Error().Err(err).Msg("final batch store failed, records will replay")
			}
			return ctx.Err()

		case errors.Is(err, context.DeadlineExceeded):
			if err := flush(ctx); err != nil {
				return err
			}

		default:
			return err
		}
	}
}
