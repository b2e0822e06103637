package models

// CandlesRequest filters the candle history endpoint.
type CandlesRequest struct {
	Pair  string `param:"pair" validate:"required"`
	Limit int    `query:"limit" default:"100" validate:"gte=1,lte=5000"`
}

// TickerResponse is the per-pair summary payload.
type TickerResponse struct {
	Pair     string    `json:"pair"`
	Last     float64   `json:"last"`
	Summary  string    `json:"summary"`
	Horizons []int     `json:"horizons"`
	Changes  []float64 `json:"changes"`
	Candles  int       `json:"candles"`
}

// TickerListResponse lists all tracked pairs.
type TickerListResponse struct {
	Count int      `json:"count"`
	Pairs []string `json:"pairs"`
}

// CandlesResponse carries a slice of flush-interval candles, oldest first.
type CandlesResponse struct {
	Pair    string   `json:"pair"`
	Candles []Candle `json:"candles"`
}

// BackfillResponse reports how many source candles an on-demand backfill
// imported.
type BackfillResponse struct {
	Pair     string `json:"pair"`
	Imported int    `json:"imported"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	Pairs       int    `json:"pairs"`
	Subscribers int    `json:"subscribers"`
}
