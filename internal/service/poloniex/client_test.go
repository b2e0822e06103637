package poloniex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "CoinStream/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	return log
}

func newTestClient(t *testing.T, restURL string) *Client {
	t.Helper()
	return New(restURL, "wss://unused", nil, testLogger(t))
}

func TestParseFrameTickerUpdate(t *testing.T) {
	c := newTestClient(t, "")
	c.pairsByID = map[int]string{121: "USDT_BTC"}

	frame := []byte(`[1002,null,[121,"8000.5","8001.0","7999.9","0.012","1000.0","120.5","0","8100.0","7900.0"]]`)
	tick, ok := c.parseFrame(frame)
	require.True(t, ok)
	assert.Equal(t, "USDT_BTC", tick.Pair)
	assert.Equal(t, 8000.5, tick.Price)
	assert.Equal(t, 0.0, tick.Volume)
}

func TestParseFrameSkipsNonTickerTraffic(t *testing.T) {
	c := newTestClient(t, "")
	c.pairsByID = map[int]string{121: "USDT_BTC"}

	cases := []struct {
		name  string
		frame string
	}{
		{"heartbeat", `[1010]`},
		{"subscribe ack", `[1002,1]`},
		{"other channel", `[1003,null,[121,"1","1","1","1","1","1","0","1","1"]]`},
		{"short field list", `[1002,null,[121,"8000.5"]]`},
		{"unknown pair id", `[1002,null,[999,"1","1","1","1","1","1","0","1","1"]]`},
		{"non-numeric last", `[1002,null,[121,"abc","1","1","1","1","1","0","1","1"]]`},
		{"not json", `hello`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := c.parseFrame([]byte(tc.frame))
			assert.False(t, ok)
		})
	}
}

func TestFetchTickers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "returnTicker", r.URL.Query().Get("command"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"BTC_ETH": {"id": 148, "last": "0.04100000", "isFrozen": "0"},
			"USDT_BTC": {"id": 121, "last": "8000.5", "isFrozen": "1"},
			"BTC_BAD": {"id": 7, "last": "not-a-number", "isFrozen": "0"}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	snapshots, err := c.FetchTickers(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshots, 2, "unparseable entries are skipped")
	assert.Equal(t, 148, snapshots["BTC_ETH"].ID)
	assert.Equal(t, 0.041, snapshots["BTC_ETH"].Last)
	assert.False(t, snapshots["BTC_ETH"].Frozen)
	assert.True(t, snapshots["USDT_BTC"].Frozen)

	// the pair ID table is refreshed, so push frames now resolve
	tick, ok := c.parseFrame([]byte(`[1002,null,[148,"0.042","1","1","1","1","1","0","1","1"]]`))
	require.True(t, ok)
	assert.Equal(t, "BTC_ETH", tick.Pair)
}

func TestFetchTickersHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchTickers(context.Background())
	require.Error(t, err)
}

func TestFetchChartData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "returnChartData", q.Get("command"))
		assert.Equal(t, "BTC_ETH", q.Get("currencyPair"))
		assert.Equal(t, "300", q.Get("period"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date": 1700000600, "high": 2, "low": 1, "open": 1, "close": 2, "volume": 5},
			{"date": 1700000300, "high": 1.5, "low": 0.5, "open": 1, "close": 1, "volume": 3}
		]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	from := time.Unix(1700000000, 0)
	to := time.Unix(1700001000, 0)
	candles, err := c.FetchChartData(context.Background(), "BTC_ETH", 300, from, to)
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, 3.0, candles[0].Volume, "results are sorted oldest first")
	assert.Equal(t, 5.0, candles[1].Volume)
}

func TestIsConnectedLifecycle(t *testing.T) {
	c := newTestClient(t, "")
	assert.False(t, c.IsConnected())
	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
