package ticker

import (
	"fmt"
	"strings"

	"CoinStream/internal/domain/models"
)

// DefaultHorizons is the fixed ordered set of lookback distances, expressed
// in flush-interval units, used for percent-change reporting.
var DefaultHorizons = []int{1, 5, 15, 60, 360, 720, 1440, 2880}

// changesOverHorizons computes the percent change from last to the close
// price h intervals back, for each horizon h. With fewer than two completed
// candles every horizon reports 0.0. A horizon deeper than the available
// history is clamped to the deepest horizon available, so the result always
// has exactly len(horizons) entries and positional meaning is preserved.
func changesOverHorizons(last float64, history []models.Candle, horizons []int) []float64 {
	out := make([]float64, len(horizons))
	if len(history) < 2 {
		return out
	}
	for i, h := range horizons {
		depth := h
		if depth > len(history) {
			depth = len(history)
		}
		if depth < 1 {
			depth = 1
		}
		ref := history[len(history)-depth].Close
		out[i] = percentChange(last, ref)
	}
	return out
}

// percentChange guards the degenerate zero reference price, reporting 0.0
// instead of propagating a non-finite value.
func percentChange(last, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (last - ref) * 100 / ref
}

// formatSummary renders the human-readable ticker line broadcast with every
// ticker.update, e.g. "BTC_ETH: 0.04100000 1m: 0.25% 5m: -1.10% ...".
// Horizon labels follow the original minute/hour convention, derived from the
// number of whole minutes one flush interval spans.
func formatSummary(pair string, last float64, horizons []int, changes []float64, unitMinutes int) string {
	if unitMinutes < 1 {
		unitMinutes = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %.8f", pair, last)
	for i, h := range horizons {
		if i >= len(changes) {
			break
		}
		minutes := h * unitMinutes
		if minutes < 60 {
			fmt.Fprintf(&b, " %dm: %.2f%%", minutes, changes[i])
		} else {
			fmt.Fprintf(&b, " %dh: %.2f%%", minutes/60, changes[i])
		}
	}
	return b.String()
}
