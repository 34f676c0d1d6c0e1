// Package returns holds the pure return/risk statistics shared by the
// portfolio analyzer and the backtest engine. Every function here is
// deterministic and side-effect free; both call sites must go through this
// package so that metric semantics stay identical.
package returns

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"financehub/types"
)

// TradingDaysPerYear is the annualization base for daily series.
const TradingDaysPerYear = 252

// Point is one daily fractional return.
type Point struct {
	Date   time.Time
	Return float64
}

type Series []Point

// Values extracts the raw return values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Return
	}
	return out
}

// FromValues derives daily returns from an ordered value series,
// r[i] = V[i]/V[i-1] - 1. The first element is dropped. Days whose previous
// value is zero are skipped, a zero denominator has no defined return.
func FromValues(points []types.EquityPoint) Series {
	var out Series
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if prev.IsZero() {
			continue
		}
		r := points[i].Value.Sub(prev).Div(prev).InexactFloat64()
		out = append(out, Point{Date: points[i].Date, Return: r})
	}
	return out
}

// FromCandles derives daily close-to-close returns from a bar series.
func FromCandles(candles []types.Candle) Series {
	points := make([]types.EquityPoint, len(candles))
	for i, c := range candles {
		points[i] = types.EquityPoint{Date: c.Date, Value: c.Close}
	}
	return FromValues(points)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation; fewer than two points yields 0.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// AnnualizedVolatility is stdev(r) * sqrt(252), as a percentage. Always >= 0.
func AnnualizedVolatility(r Series) float64 {
	return stdev(r.Values()) * math.Sqrt(TradingDaysPerYear) * 100
}

// SharpeRatio is the annualized excess return per unit of volatility.
// riskFreeRate is annual and fractional (0.045 for 4.5%). Zero volatility
// yields 0 rather than a division by zero.
func SharpeRatio(r Series, riskFreeRate float64) float64 {
	vol := AnnualizedVolatility(r)
	if vol == 0 {
		return 0
	}
	annualReturn := mean(r.Values()) * TradingDaysPerYear * 100
	return (annualReturn - riskFreeRate*100) / vol
}

// MaxDrawdown is the largest peak-to-trough decline of a value series as a
// non-positive percentage. It is 0 exactly when the series never declines.
func MaxDrawdown(points []types.EquityPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	peak := points[0].Value
	worst := 0.0
	for _, p := range points {
		if p.Value.GreaterThan(peak) {
			peak = p.Value
		}
		if peak.IsZero() {
			continue
		}
		dd := p.Value.Sub(peak).Div(peak).InexactFloat64()
		if dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

// minOverlap is the number of common dates below which beta/alpha fall back
// to the neutral defaults (beta 1, alpha 0). A regression on fewer points is
// an estimate not worth reporting.
const minOverlap = 30

// BetaAlpha regresses portfolio returns against benchmark returns over their
// date intersection. riskFreeRate is annual and fractional; alpha is returned
// as a percentage. Degenerate inputs (short overlap, zero benchmark variance)
// yield beta=1, alpha=0.
func BetaAlpha(portfolio, benchmark Series, riskFreeRate float64) (beta, alpha float64) {
	byDate := make(map[time.Time]float64, len(benchmark))
	for _, p := range benchmark {
		byDate[day(p.Date)] = p.Return
	}

	var ps, bs []float64
	for _, p := range portfolio {
		if b, ok := byDate[day(p.Date)]; ok {
			ps = append(ps, p.Return)
			bs = append(bs, b)
		}
	}
	if len(ps) < minOverlap {
		return 1.0, 0.0
	}

	pMean, bMean := mean(ps), mean(bs)
	var cov, bVar float64
	for i := range ps {
		cov += (ps[i] - pMean) * (bs[i] - bMean)
		bVar += (bs[i] - bMean) * (bs[i] - bMean)
	}
	n := float64(len(ps) - 1)
	cov /= n
	bVar /= n
	if bVar == 0 {
		return 1.0, 0.0
	}

	beta = cov / bVar
	portAnnual := pMean * TradingDaysPerYear
	benchAnnual := bMean * TradingDaysPerYear
	alpha = (portAnnual - (riskFreeRate + beta*(benchAnnual-riskFreeRate))) * 100
	return beta, alpha
}

// ValueAtRisk95 is the 5th percentile of the daily return distribution as a
// percentage; more negative means riskier.
func ValueAtRisk95(r Series) float64 {
	return percentile(r.Values(), 5) * 100
}

// percentile computes the p-th percentile with linear interpolation between
// order statistics.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// AnnualizedFromTotal extrapolates an annualized return from a total return
// over an assumed holding window in days. Both are percentages.
func AnnualizedFromTotal(totalReturnPct float64, daysHeld float64) float64 {
	if daysHeld <= 0 {
		return totalReturnPct
	}
	return (math.Pow(1+totalReturnPct/100, 365/daysHeld) - 1) * 100
}

// CompoundAnnualized annualizes a capital ratio over a trading-day count,
// (final/initial)^(252/days) - 1, as a percentage.
func CompoundAnnualized(initial, final decimal.Decimal, tradingDays int) float64 {
	if tradingDays <= 0 || !initial.IsPositive() {
		return 0
	}
	ratio := final.Div(initial).InexactFloat64()
	if ratio <= 0 {
		return 0
	}
	return (math.Pow(ratio, TradingDaysPerYear/float64(tradingDays)) - 1) * 100
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
