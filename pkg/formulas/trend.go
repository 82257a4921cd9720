package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateSMA calculates the Simple Moving Average over the last `length`
// values. Returns nil when there is not enough data.
func CalculateSMA(values []float64, length int) *float64 {
	if length <= 0 || len(values) < length {
		return nil
	}

	sma := talib.Sma(values, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// CalculateROC calculates the Rate of Change (in percent) over `length`
// periods. Returns nil when there is not enough data.
func CalculateROC(values []float64, length int) *float64 {
	if length <= 0 || len(values) <= length {
		return nil
	}

	roc := talib.Roc(values, length)
	if len(roc) > 0 && !math.IsNaN(roc[len(roc)-1]) {
		result := roc[len(roc)-1]
		return &result
	}

	return nil
}
