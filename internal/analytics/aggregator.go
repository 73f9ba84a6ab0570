package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries     int64       `json:"total_queries"`
	FailedQueries    int64       `json:"failed_queries"`
	CacheHits        int64       `json:"cache_hits"`
	CacheMisses      int64       `json:"cache_misses"`
	EmptyResults     int64       `json:"empty_results"`
	AvgLatencyMs     float64     `json:"avg_latency_ms"`
	P50LatencyMs     int64       `json:"p50_latency_ms"`
	P95LatencyMs     int64       `json:"p95_latency_ms"`
	P99LatencyMs     int64       `json:"p99_latency_ms"`
	TopKeywords      []TermCount `json:"top_keywords"`
	EmptyResultItems []TermCount `json:"empty_result_items"`
	QueriesPerMinute float64     `json:"queries_per_minute"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator folds related-query events into running statistics.
type Aggregator struct {
	mu           sync.RWMutex
	stats        AggregatedStats
	latencies    []int64
	keywords     map[string]int64
	emptyResults map[string]int64
	startTime    time.Time
	logger       *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:    make([]int64, 0, 1024),
		keywords:     make(map[string]int64),
		emptyResults: make(map[string]int64),
		startTime:    time.Now(),
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages
// are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RelatedQueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event RelatedQueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalQueries++
	if event.Type == EventQueryFailed {
		a.stats.FailedQueries++
		return
	}
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	if event.Keyword != "" {
		a.keywords[event.Keyword]++
	}
	if event.Returned == 0 {
		a.stats.EmptyResults++
		a.emptyResults[strconv.FormatInt(event.ItemID, 10)]++
	}
	if len(a.latencies) == maxLatencySamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopKeywords = topN(a.keywords, 10)
	stats.EmptyResultItems = topN(a.emptyResults, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

// StartedAt reports when the aggregator began collecting.
func (a *Aggregator) StartedAt() time.Time {
	return a.startTime
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then term, so equal counts list stably.
func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
