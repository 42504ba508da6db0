// Package results turns the metrics collected during a run into summaries
// and handles their display and storage. Trends are reduced to the usual
// latency statistics, counters are kept as is along with their rate over the
// run.
package results

import (
	"math"
	"sort"
	"time"

	"neon-loadtest/core"
)

// TrendSummary holds the statistics of one trend, in milliseconds.
type TrendSummary struct {
	Count  int     `json:"count"`
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"med"`
	P90    float64 `json:"p(90)"`
	P95    float64 `json:"p(95)"`
}

// Results is what is written at the end of a run.
type Results struct {
	Scenario string                  `json:"scenario"`
	Duration float64                 `json:"duration"` // Seconds
	Counters map[string]float64      `json:"counters"`
	Rates    map[string]float64      `json:"rates"` // Counter value per second
	Trends   map[string]TrendSummary `json:"trends"`
}

// Summarize computes the results of a run that lasted `elapsed`.
func Summarize(scenario string, snapshot core.Snapshot, elapsed time.Duration) Results {
	var results Results
	var samples []core.Sample
	var name string
	var value float64

	results.Scenario = scenario
	results.Duration = elapsed.Seconds()
	results.Counters = make(map[string]float64, len(snapshot.Counters))
	results.Rates = make(map[string]float64, len(snapshot.Counters))
	results.Trends = make(map[string]TrendSummary, len(snapshot.Trends))

	for name, value = range snapshot.Counters {
		results.Counters[name] = value
		if elapsed > 0 {
			results.Rates[name] = value / elapsed.Seconds()
		}
	}

	for name, samples = range snapshot.Trends {
		results.Trends[name] = SummarizeTrend(samples)
	}

	return results
}

// SummarizeTrend computes the statistics of a trend. An empty trend has a
// zero summary.
func SummarizeTrend(samples []core.Sample) TrendSummary {
	var summary TrendSummary
	var values []float64
	var sum float64
	var i int

	if len(samples) == 0 {
		return summary
	}

	values = make([]float64, len(samples))
	for i = range samples {
		values[i] = float64(samples[i].Value) / float64(time.Millisecond)
		sum += values[i]
	}

	sort.Float64s(values)

	summary.Count = len(values)
	summary.Avg = sum / float64(len(values))
	summary.Min = values[0]
	summary.Max = values[len(values)-1]
	summary.Median = percentile(values, 0.5)
	summary.P90 = percentile(values, 0.9)
	summary.P95 = percentile(values, 0.95)

	return summary
}

// Linear interpolation between the closest ranks of sorted `values`.
func percentile(values []float64, p float64) float64 {
	var position, fraction float64
	var lower int

	if len(values) == 1 {
		return values[0]
	}

	position = p * float64(len(values)-1)
	lower = int(math.Floor(position))
	fraction = position - float64(lower)

	if lower+1 >= len(values) {
		return values[len(values)-1]
	}

	return values[lower] + fraction*(values[lower+1]-values[lower])
}

// Log prints the results, one line per series, sorted by name.
func (this *Results) Log(logger core.Logger) {
	var names []string
	var summary TrendSummary
	var name string

	logger.Infof("scenario '%s' ran for %.1fs", this.Scenario,
		this.Duration)

	names = make([]string, 0, len(this.Counters))
	for name = range this.Counters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name = range names {
		logger.Infof("%-32s %12.0f %10.2f/s", name, this.Counters[name],
			this.Rates[name])
	}

	names = make([]string, 0, len(this.Trends))
	for name = range this.Trends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name = range names {
		summary = this.Trends[name]
		logger.Infof("%-32s avg=%.2fms min=%.2fms med=%.2fms "+
			"max=%.2fms p(90)=%.2fms p(95)=%.2fms count=%d", name,
			summary.Avg, summary.Min, summary.Median, summary.Max,
			summary.P90, summary.P95, summary.Count)
	}
}
