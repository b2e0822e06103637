package poloniex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"CoinStream/internal/domain/models"
	drepo "CoinStream/internal/domain/repository"
	"CoinStream/internal/event"
	"CoinStream/internal/service/ratelimit"
	xhttp "CoinStream/pkg/http"
	applogger "CoinStream/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// tickerChannel is the Poloniex push channel carrying ticker updates.
const tickerChannel = 1002

// Client implements MarketStream and HistorySource against the Poloniex
// push and REST APIs.
type Client struct {
	restURL        string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	httpc  *xhttp.Client
	gate   *ratelimit.Gate
	events drepo.Events
	log    *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pairsByID map[int]string
}

// Option configures the Client.
type Option func(*Client)

// WithReconnectDelay sets the base delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithPingInterval sets the websocket keepalive interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithGate bounds concurrent and per-second REST requests.
func WithGate(g *ratelimit.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// New creates a Poloniex API client.
func New(restURL, websocketURL string, events drepo.Events, log *applogger.Logger, opts ...Option) *Client {
	c := &Client{
		restURL:        restURL,
		websocketURL:   websocketURL,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		httpc:          xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
		events:         events,
		log:            log,
		pairsByID:      make(map[int]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the push API connection.
func (c *Client) Connect(ctx context.Context) error {
	c.emit(event.EventPushConnecting, "connecting to push api")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("poloniex connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.Info("poloniex: connected to push api", applogger.String("url", c.websocketURL))
	c.emit(event.EventPushConnected, "connected to push api")
	return nil
}

// Subscribe subscribes to the ticker channel. The pair ID table is loaded
// from the REST API first so push frames can be resolved to pair labels.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	haveIDs := len(c.pairsByID) > 0
	c.mu.Unlock()

	if conn == nil || !connected {
		return fmt.Errorf("poloniex not connected")
	}

	if !haveIDs {
		if _, err := c.FetchTickers(ctx); err != nil {
			return fmt.Errorf("load pair ids: %w", err)
		}
	}

	msg := map[string]interface{}{"command": "subscribe", "channel": tickerChannel}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe ticker channel: %w", err)
	}
	c.log.Info("poloniex: subscribed to ticker channel")
	return nil
}

// Read streams ticker updates and errors until the context is cancelled or
// the connection fails.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// keepalive loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("poloniex conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("poloniex read: %w", err)
					return
				}
				tick, ok := c.parseFrame(b)
				if !ok {
					continue
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

// parseFrame decodes a push frame. Ticker updates arrive as
// [1002, null, [id, last, ask, bid, change, baseVol, quoteVol, frozen, high, low]];
// acks and heartbeats are silently skipped.
func (c *Client) parseFrame(b []byte) (*models.Tick, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(b, &frame); err != nil {
		return nil, false
	}
	if len(frame) < 3 {
		return nil, false
	}

	var channel int
	if err := json.Unmarshal(frame[0], &channel); err != nil || channel != tickerChannel {
		return nil, false
	}

	var fields []json.RawMessage
	if err := json.Unmarshal(frame[2], &fields); err != nil || len(fields) < 10 {
		c.log.Warn("poloniex: short ticker frame", applogger.Int("fields", len(fields)))
		return nil, false
	}

	var id int
	if err := json.Unmarshal(fields[0], &id); err != nil {
		return nil, false
	}

	var lastStr string
	if err := json.Unmarshal(fields[1], &lastStr); err != nil {
		return nil, false
	}
	last, err := strconv.ParseFloat(lastStr, 64)
	if err != nil {
		return nil, false
	}

	c.mu.Lock()
	pair, ok := c.pairsByID[id]
	c.mu.Unlock()
	if !ok {
		c.log.Warn("poloniex: unknown pair id", applogger.Int("id", id))
		return nil, false
	}

	// Push ticker updates carry no per-trade volume.
	return &models.Tick{Pair: pair, Price: last, Volume: 0}, true
}

// Reconnect closes and re-establishes the connection with exponential backoff.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.reconnectDelay
	policy.MaxElapsedTime = 0 // retry until the context is cancelled

	operation := func() error {
		if err := c.Connect(ctx); err != nil {
			c.log.Warn("poloniex: reconnect attempt failed", applogger.Error(err))
			return err
		}
		return c.Subscribe(ctx)
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// Close closes the push connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.emit(event.EventPushDisconnect, "disconnected from push api")
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) emit(label, message string) {
	if c.events == nil {
		return
	}
	if err := c.events.Emit(label, map[string]interface{}{"message": message}); err != nil {
		c.log.Warn("poloniex: emit lifecycle event", applogger.Error(err))
	}
}
