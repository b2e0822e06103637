package api

import (
	"time"

	models "CoinStream/internal/domain/models"
	"CoinStream/internal/stream"
	"CoinStream/internal/usecase"
	"CoinStream/pkg/cache"
	xhttp "CoinStream/pkg/http"
	xlogger "CoinStream/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TickersEchoHandler exposes the aggregation engine over HTTP and the event
// stream over WebSocket.
type TickersEchoHandler struct {
	logger     *xlogger.Logger
	collector  *usecase.TickerCollector
	hub        *stream.Hub
	cache      cache.Service
	cacheTTL   time.Duration
	streamPath string
}

func NewTickersEchoHandler(
	logger *xlogger.Logger,
	collector *usecase.TickerCollector,
	hub *stream.Hub,
	cacheSvc cache.Service,
	cacheTTL time.Duration,
	streamPath string,
) *TickersEchoHandler {
	if streamPath == "" {
		streamPath = "/ws"
	}
	return &TickersEchoHandler{
		logger:     logger,
		collector:  collector,
		hub:        hub,
		cache:      cacheSvc,
		cacheTTL:   cacheTTL,
		streamPath: streamPath,
	}
}

func (h *TickersEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/tickers", h.Tickers)
	g.GET("/ticker/:pair", h.Ticker)
	g.GET("/ticker/:pair/candles", h.Candles)
	g.POST("/ticker/:pair/backfill", h.Backfill)

	e.GET("/healthz", h.Health)
	e.GET(h.streamPath, h.hub.ServeWS)
}

// Tickers lists all tracked pairs. An optional limit query truncates the list.
func (h *TickersEchoHandler) Tickers(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0)

	key := cache.GenerateKeyWithParams("api:tickers", limit)
	if cached, ok := h.cached(c, key); ok {
		return xhttp.SuccessResponse(c, cached)
	}

	engine := h.collector.Engine()
	pairs := engine.Labels()
	if limit > 0 && limit < len(pairs) {
		pairs = pairs[:limit]
	}
	res := &models.TickerListResponse{
		Count: engine.Count(),
		Pairs: pairs,
	}
	h.store(c, key, res)
	return xhttp.SuccessResponse(c, res)
}

// Ticker returns the summary and horizon changes for one pair.
func (h *TickersEchoHandler) Ticker(c echo.Context) error {
	pair := c.Param("pair")
	engine := h.collector.Engine()

	series, ok := engine.Lookup(pair)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown pair %q", pair))
	}

	key := cache.GenerateKey("api:ticker", series.Pair())
	if cached, ok := h.cached(c, key); ok {
		return xhttp.SuccessResponse(c, cached)
	}

	horizons := engine.Horizons()
	res := &models.TickerResponse{
		Pair:     series.Pair(),
		Last:     series.Last(),
		Summary:  series.Summary(horizons),
		Horizons: horizons,
		Changes:  series.Changes(horizons),
		Candles:  series.HistoryLen(),
	}
	h.store(c, key, res)
	return xhttp.SuccessResponse(c, res)
}

// Backfill re-imports a pair's history from the REST chart endpoint. The
// window defaults to the last 24 hours; from/to accept RFC3339 or unix
// seconds.
func (h *TickersEchoHandler) Backfill(c echo.Context) error {
	pair := c.Param("pair")

	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now())
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), to.Add(-24*time.Hour))

	imported, err := h.collector.BackfillPair(c.Request().Context(), pair, from, to)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, &models.BackfillResponse{
		Pair:     pair,
		Imported: imported,
	})
}

// Candles returns up to limit most recent candles for one pair, oldest first.
func (h *TickersEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	engine := h.collector.Engine()
	series, ok := engine.Lookup(req.Pair)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown pair %q", req.Pair))
	}

	res := &models.CandlesResponse{
		Pair:    series.Pair(),
		Candles: series.History(req.Limit),
	}
	return xhttp.SuccessResponse(c, res)
}

// Health reports stream connectivity and engine size.
func (h *TickersEchoHandler) Health(c echo.Context) error {
	engine := h.collector.Engine()
	status := "ok"
	if !h.collector.IsConnected() {
		status = "degraded"
	}
	return xhttp.SuccessResponse(c, &models.HealthResponse{
		Status:      status,
		Connected:   h.collector.IsConnected(),
		Pairs:       engine.Count(),
		Subscribers: h.hub.ClientCount(),
	})
}

func (h *TickersEchoHandler) cached(c echo.Context, key string) (interface{}, bool) {
	if h.cache == nil || h.cacheTTL <= 0 {
		return nil, false
	}
	var v interface{}
	if err := h.cache.Get(c.Request().Context(), key, &v); err != nil {
		return nil, false
	}
	return v, true
}

func (h *TickersEchoHandler) store(c echo.Context, key string, v interface{}) {
	if h.cache == nil || h.cacheTTL <= 0 {
		return
	}
	if err := h.cache.Set(c.Request().Context(), key, v, h.cacheTTL); err != nil {
		h.logger.Warn("response cache set failed", xlogger.Error(err))
	}
}
