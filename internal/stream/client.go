package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/logger"
)

// ErrUpstreamDisconnect reports that the vendor closed or dropped the
// websocket session. The session is not resumed in-process; the caller
// decides whether to restart.
var ErrUpstreamDisconnect = errors.New("upstream stream disconnected")

// Handler consumes one market update. Returning an error aborts the
// subscription.
type Handler func(ctx context.Context, update models.MarketUpdate) error

// Stream is a subscription to the vendor's firehose of market updates.
type Stream interface {
	Subscribe(ctx context.Context, handler Handler) error
}

type wsClient struct {
	url    string
	apiKey string
	dialer *websocket.Dialer
}

// NewClient builds a websocket stream client for the given endpoint.
func NewClient(rawURL, apiKey string) Stream {
	return &wsClient{
		url:    rawURL,
		apiKey: apiKey,
		dialer: websocket.DefaultDialer,
	}
}

const pingInterval = 30 * time.Second

// envelope is the outer frame schema. Frames without a marketUpdate carrying
// a tradesUpdate (auth results, order book deltas, heartbeats) are skipped.
type envelope struct {
	MarketUpdate *struct {
		Market       *models.MarketDescriptor `json:"market"`
		TradesUpdate *struct {
			Trades []models.Fill `json:"trades"`
		} `json:"tradesUpdate"`
	} `json:"marketUpdate"`
}

// Subscribe connects and delivers trade frames to the handler until the
// context is cancelled, the handler errors, or the upstream drops the
// session. Upstream drops are reported as ErrUpstreamDisconnect.
func (c *wsClient) Subscribe(ctx context.Context, handler Handler) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrUpstreamDisconnect, err)
	}
	defer func() { _ = conn.Close() }()

	logger.L().Info().Str("url", c.url).Msg("subscribed to upstream stream")

	// Closing the connection is the only way to unblock ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrUpstreamDisconnect, err)
		}

		update, ok := decodeTradeFrame(payload)
		if !ok {
			continue
		}
		if err := handler(ctx, update); err != nil {
			return err
		}
	}
}

// decodeTradeFrame extracts a market update from one frame. Non-JSON frames
// and frames of other channels report ok=false.
func decodeTradeFrame(payload []byte) (models.MarketUpdate, bool) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.L().Debug().Err(err).Msg("skipping undecodable frame")
		return models.MarketUpdate{}, false
	}
	if env.MarketUpdate == nil || env.MarketUpdate.TradesUpdate == nil {
		return models.MarketUpdate{}, false
	}
	return models.MarketUpdate{
		Market: env.MarketUpdate.Market,
		Trades: env.MarketUpdate.TradesUpdate.Trades,
	}, true
}

// endpoint appends the API key to the stream URL when one is configured.
func (c *wsClient) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("stream url: %w", err)
	}
	if c.apiKey != "" {
		q := u.Query()
		q.Set("apikey", c.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
