package models

// Tick is a single observed trade for a currency pair. Price carries the
// exchange rate at observation time; Volume is the traded amount, which may
// legitimately be zero for pure ticker updates.
type Tick struct {
	Pair   string  `json:"pair"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Candle aggregates all ticks observed during exactly one flush interval.
type Candle struct {
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// TickerSnapshot is one entry of the exchange's bulk ticker listing, used to
// seed the tracker before live updates arrive.
type TickerSnapshot struct {
	ID     int
	Pair   string
	Last   float64
	Frozen bool
}
