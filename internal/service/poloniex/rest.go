package poloniex

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"CoinStream/internal/domain/models"
	xhttp "CoinStream/pkg/http"
	applogger "CoinStream/pkg/logger"
)

// restTicker is one entry of the returnTicker listing. Numeric values come
// over the wire as strings.
type restTicker struct {
	ID       int    `json:"id"`
	Last     string `json:"last"`
	IsFrozen string `json:"isFrozen"`
}

// restCandle is one entry of the returnChartData listing.
type restCandle struct {
	Date   int64   `json:"date"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// FetchTickers retrieves the full ticker table and refreshes the pair ID map
// used to resolve push frames.
func (c *Client) FetchTickers(ctx context.Context) (map[string]models.TickerSnapshot, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	var raw map[string]restTicker
	err := c.httpc.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.restURL,
		QueryParams: map[string][]string{"command": {"returnTicker"}},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("returnTicker: %w", err)
	}

	snapshots := make(map[string]models.TickerSnapshot, len(raw))
	ids := make(map[int]string, len(raw))
	for pair, t := range raw {
		last, err := strconv.ParseFloat(t.Last, 64)
		if err != nil {
			c.log.Warn("poloniex: unparseable last price",
				applogger.String("pair", pair),
				applogger.String("last", t.Last),
			)
			continue
		}
		snapshots[pair] = models.TickerSnapshot{
			ID:     t.ID,
			Pair:   pair,
			Last:   last,
			Frozen: t.IsFrozen != "0",
		}
		ids[t.ID] = pair
	}

	c.mu.Lock()
	c.pairsByID = ids
	c.mu.Unlock()

	c.log.Info("poloniex: fetched ticker table", applogger.Int("pairs", len(snapshots)))
	return snapshots, nil
}

// FetchChartData retrieves historical candles for a pair at the given period.
// Results are sorted oldest first.
func (c *Client) FetchChartData(ctx context.Context, pair string, periodSeconds int, from, to time.Time) ([]models.Candle, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	var raw []restCandle
	err := c.httpc.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL,
		QueryParams: map[string][]string{
			"command":      {"returnChartData"},
			"currencyPair": {pair},
			"period":       {strconv.Itoa(periodSeconds)},
			"start":        {strconv.FormatInt(from.Unix(), 10)},
			"end":          {strconv.FormatInt(to.Unix(), 10)},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("returnChartData %s: %w", pair, err)
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].Date < raw[j].Date })

	candles := make([]models.Candle, 0, len(raw))
	for _, rc := range raw {
		candles = append(candles, models.Candle{
			High:   rc.High,
			Low:    rc.Low,
			Open:   rc.Open,
			Close:  rc.Close,
			Volume: rc.Volume,
		})
	}
	return candles, nil
}

func (c *Client) acquire(ctx context.Context) error {
	if c.gate == nil {
		return nil
	}
	return c.gate.Acquire(ctx)
}

func (c *Client) release() {
	if c.gate != nil {
		c.gate.Release()
	}
}
