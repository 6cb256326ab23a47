package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
)

// DayValue is one point of a daily series.
type DayValue struct {
	Day   time.Time
	Value float64
}

// Anomaly is a point whose z-score exceeds the threshold.
type Anomaly struct {
	Day      time.Time `json:"day"`
	Value    float64   `json:"value"`
	Expected float64   `json:"expected"`
	ZScore   float64   `json:"zscore"`
}

// Stats returns the mean and sample standard deviation of values.
func Stats(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}

// ZScore returns (v-mean)/std, or 0 when std is zero.
func ZScore(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

// DetectAnomalies flags every point of series with |z| > threshold.
func DetectAnomalies(series []DayValue, threshold float64) []Anomaly {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	mean, std := Stats(values)

	var out []Anomaly
	for _, p := range series {
		z := ZScore(p.Value, mean, std)
		if math.Abs(z) > threshold {
			out = append(out, Anomaly{Day: p.Day, Value: p.Value, Expected: mean, ZScore: round(z, 2)})
		}
	}
	return out
}

// LatestPoint scores the last point of series against the whole series.
// ok is false for an empty series.
func LatestPoint(series []DayValue) (a Anomaly, ok bool) {
	if len(series) == 0 {
		return Anomaly{}, false
	}
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	mean, std := Stats(values)
	last := series[len(series)-1]
	return Anomaly{Day: last.Day, Value: last.Value, Expected: mean, ZScore: round(ZScore(last.Value, mean, std), 2)}, true
}

// EventVolume counts events per UTC day, ordered by day.
func EventVolume(events []domain.Event) []DayValue {
	counts := map[time.Time]float64{}
	for _, e := range events {
		counts[domain.Day(e.EventTimestamp)]++
	}
	return sortedSeries(counts)
}

// DAUSeries extracts the DAU column of the daily KPI view.
func DAUSeries(rows []DailyKPI) []DayValue {
	series := make([]DayValue, len(rows))
	for i, r := range rows {
		series[i] = DayValue{Day: r.Date, Value: float64(r.DAU)}
	}
	return series
}

// LatestSuccessRate returns the completed share (percent, two decimals) of
// transactions created on the most recent ledger day, and that day's count.
func LatestSuccessRate(txns []domain.Transaction) (rate float64, total int) {
	var latest time.Time
	for _, t := range txns {
		if d := domain.Day(t.CreatedAt); d.After(latest) {
			latest = d
		}
	}
	completed := 0
	for _, t := range txns {
		if !domain.Day(t.CreatedAt).Equal(latest) {
			continue
		}
		total++
		if t.Status == domain.StatusCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return round(float64(completed)*100/float64(total), 2), total
}

func sortedSeries(m map[time.Time]float64) []DayValue {
	series := make([]DayValue, 0, len(m))
	for d, v := range m {
		series = append(series, DayValue{Day: d, Value: v})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Day.Before(series[j].Day) })
	return series
}
