package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/mneedham/pinot-cryptowatch/internal/broker"
	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/logger"
	"github.com/mneedham/pinot-cryptowatch/internal/stream"
)

// Loop drives one ingestion session: subscribe to the upstream stream,
// normalize every market update, and publish the resulting records to the
// trade log.
//
// Malformed updates are logged and skipped without advancing the publish
// counter. Publisher errors are fatal to the session. The loop is
// single-goroutine by construction; the counter needs no locking.
type Loop struct {
	stream     stream.Stream
	publisher  broker.Publisher
	flushEvery int

	published int64
}

// NewLoop wires a session over the given stream and publisher. flushEvery
// bounds how many records may be in flight before the loop forces a flush.
func NewLoop(s stream.Stream, p broker.Publisher, flushEvery int) *Loop {
	if flushEvery <= 0 {
		flushEvery = 1000
	}
	return &Loop{stream: s, publisher: p, flushEvery: flushEvery}
}

// Run blocks until the context is cancelled or the session fails. A
// cancelled context is a clean shutdown, not an error. The publisher is
// flushed on the way out either way, so records accepted before shutdown
// are settled.
func (l *Loop) Run(ctx context.Context) error {
	err := l.stream.Subscribe(ctx, l.handle)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if flushErr := l.publisher.Flush(flushCtx); flushErr != nil {
		logger.L().Error().Err(flushErr).Msg("final flush incomplete")
	}

	logger.L().Info().Int64("published", l.published).Msg("ingestion session ended")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Loop) handle(ctx context.Context, update models.MarketUpdate) error {
	records, err := Normalize(update)
	if err != nil {
		logger.L().Warn().Err(err).Msg("skipping malformed market update")
		return nil
	}

	for _, rec := range records {
		if err := l.publisher.Publish(ctx, rec); err != nil {
			return err
		}
		l.published++
		if l.published%int64(l.flushEvery) == 0 {
			if err := l.publisher.Flush(ctx); err != nil {
				return err
			}
			logger.L().Info().Int64("published", l.published).Msg("flushed trade log writer")
		}
	}
	return nil
}
