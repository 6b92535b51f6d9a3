package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/logger"
)

// Publisher appends normalized trade records to the durable trade log.
//
// Delivery is at-most-once: writes are asynchronous, are not retried, and a
// failed record is logged with its key and dropped. Records are keyed by
// instrument id so all trades of one instrument land on one partition in
// append order.
type Publisher interface {
	Publish(ctx context.Context, trade models.TradeRecord) error
	Flush(ctx context.Context) error
	Close() error
}

// messageWriter is the slice of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type tradePublisher struct {
	writer messageWriter

	mu       sync.Mutex
	inFlight int
	settled  chan struct{} // non-nil while records are in flight, closed when the count hits zero
}

// track adjusts the in-flight count, maintaining the channel waiters block on.
func (p *tradePublisher) track(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight += n
	if p.inFlight > 0 && p.settled == nil {
		p.settled = make(chan struct{})
	}
	if p.inFlight == 0 && p.settled != nil {
		close(p.settled)
		p.settled = nil
	}
}

// NewPublisher builds a trade-log publisher over the given brokers and topic.
func NewPublisher(brokers []string, topic string) Publisher {
	p := &tradePublisher{}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		MaxAttempts:  1,
		RequiredAcks: kafka.RequireOne,
		Completion:   p.completed,
	}
	return p
}

// Publish serializes one trade record and hands it to the async writer. The
// error return covers serialization and writer shutdown only; broker-side
// failures surface in the completion callback.
func (p *tradePublisher) Publish(ctx context.Context, trade models.TradeRecord) error {
	payload, err := json.Marshal(trade)
	if err != nil {
		return err
	}

	p.track(1)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(trade.Key()),
		Value: payload,
	})
	if err != nil {
		p.track(-1)
		return err
	}
	return nil
}

// completed settles in-flight accounting and logs dropped records.
func (p *tradePublisher) completed(messages []kafka.Message, err error) {
	if err != nil {
		for _, m := range messages {
			logger.L().Error().
				Err(err).
				Str("key", string(m.Key)).
				Msg("trade record dropped, broker write failed")
		}
	}
	p.track(-len(messages))
}

// Flush blocks until every record handed to Publish has been settled, either
// acknowledged or dropped, or until the context is cancelled. A cancelled
// flush leaves nothing behind; later flushes pick up the same channel.
func (p *tradePublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	settled := p.settled
	p.mu.Unlock()
	if settled == nil {
		return nil
	}

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and releases the underlying writer.
func (p *tradePublisher) Close() error {
	return p.writer.Close()
}
