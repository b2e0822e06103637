package ticker

import (
	"fmt"
	"math"
	"sync"
	"time"

	"CoinStream/internal/domain/models"
)

type tickPoint struct {
	price  float64
	volume float64
}

// Series keeps the per-pair candle history plus the mutable tick buffer
// accumulating since the last flush. Each Series carries its own lock so
// unrelated pairs never serialize on each other; RecordTick and Materialize
// hold it for their full critical section and no lock is ever held across a
// broadcast or network call.
type Series struct {
	mu      sync.Mutex
	pair    string
	history []models.Candle
	buffer  []tickPoint
	last    float64

	flushInterval time.Duration
}

// NewSeries creates an empty series for a currency pair. The flush interval
// is needed to expand coarse backfill periods and to label summary horizons.
func NewSeries(pair string, flushInterval time.Duration) *Series {
	return &Series{pair: pair, flushInterval: flushInterval}
}

// Pair returns the normalized currency pair label this series tracks.
func (s *Series) Pair() string { return s.pair }

// RecordTick appends one price/volume point to the buffer and updates the
// last observed price. Negative or non-finite values are rejected.
func (s *Series) RecordTick(price, volume float64) error {
	if !isValidValue(price) || !isValidValue(volume) {
		return fmt.Errorf("record tick %s (price=%v volume=%v): %w", s.pair, price, volume, models.ErrInvalidValue)
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, tickPoint{price: price, volume: volume})
	s.last = price
	s.mu.Unlock()
	return nil
}

// Materialize turns the buffered ticks into one completed candle, appends it
// to history and clears the buffer, all atomically with respect to concurrent
// RecordTick calls. An empty buffer yields a zero-volume flat candle derived
// from the last observed price.
func (s *Series) Materialize() models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c models.Candle
	if len(s.buffer) == 0 {
		c = models.Candle{High: s.last, Low: s.last, Open: s.last, Close: s.last, Volume: 0}
	} else {
		c = models.Candle{
			High:  s.buffer[0].price,
			Low:   s.buffer[0].price,
			Open:  s.buffer[0].price,
			Close: s.buffer[len(s.buffer)-1].price,
		}
		for _, p := range s.buffer {
			if p.price > c.High {
				c.High = p.price
			}
			if p.price < c.Low {
				c.Low = p.price
			}
			c.Volume += p.volume
		}
	}

	s.history = append(s.history, c)
	s.buffer = s.buffer[:0]
	return c
}

// Changes reports the percent change from the last observed price to the
// close h flush intervals back, for every horizon h.
func (s *Series) Changes(horizons []int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return changesOverHorizons(s.last, s.history, horizons)
}

// ImportBackfill wholesale-replaces history with an expansion of coarse
// source candles. Each source period covering intervalSeconds becomes
// intervalSeconds/flushIntervalSeconds synthetic candles sharing the source
// open/high/low, each carrying an even split of the source volume. The close
// of every synthetic candle is forced to the source open, except the last of
// each group which keeps the true close.
func (s *Series) ImportBackfill(candles []models.Candle, intervalSeconds int) error {
	flushSeconds := int(s.flushInterval / time.Second)
	if len(candles) == 0 {
		return fmt.Errorf("backfill %s: empty candle set: %w", s.pair, models.ErrInvalidValue)
	}
	if flushSeconds <= 0 || intervalSeconds <= 0 || intervalSeconds%flushSeconds != 0 {
		return fmt.Errorf("backfill %s: interval %ds is not a positive multiple of the %ds flush interval: %w",
			s.pair, intervalSeconds, flushSeconds, models.ErrInvalidValue)
	}

	dup := intervalSeconds / flushSeconds
	expanded := make([]models.Candle, 0, len(candles)*dup)
	for _, src := range candles {
		for i := 0; i < dup; i++ {
			c := models.Candle{
				High:   src.High,
				Low:    src.Low,
				Open:   src.Open,
				Close:  src.Open,
				Volume: src.Volume / float64(dup),
			}
			if i == dup-1 {
				c.Close = src.Close
			}
			expanded = append(expanded, c)
		}
	}

	s.mu.Lock()
	s.history = expanded
	s.mu.Unlock()
	return nil
}

// Summary renders the broadcastable one-line state of this pair: last price
// plus the percent change for every horizon.
func (s *Series) Summary(horizons []int) string {
	s.mu.Lock()
	last := s.last
	changes := changesOverHorizons(last, s.history, horizons)
	s.mu.Unlock()

	return formatSummary(s.pair, last, horizons, changes, int(s.flushInterval.Minutes()))
}

// Last returns the most recent observed price, which may predate any flush.
func (s *Series) Last() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// HistoryLen returns the number of completed candles.
func (s *Series) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns a copy of the most recent limit candles, oldest first.
// limit <= 0 returns the full history.
func (s *Series) History(limit int) []models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Candle, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

func isValidValue(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
