// Command loadtest drives the related-items endpoint over a range of item
// IDs and reports throughput, latency percentiles and the cache hit ratio.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	FirstItemID  int64
	LastItemID   int64
	PostsPerPage int
	Fields       string
}

type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
		if cacheHit {
			s.cacheHits.Add(1)
		}
	} else {
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the related-content service")
	flag.IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	flag.Int64Var(&cfg.FirstItemID, "first", 1, "first reference item id")
	flag.Int64Var(&cfg.LastItemID, "last", 100, "last reference item id")
	flag.IntVar(&cfg.PostsPerPage, "posts-per-page", 5, "posts_per_page sent with every query")
	flag.StringVar(&cfg.Fields, "fields", "ids", "fields mode: ids or all")
	flag.Parse()

	if cfg.LastItemID < cfg.FirstItemID || cfg.FirstItemID < 1 {
		fmt.Fprintln(os.Stderr, "item id range must satisfy 1 <= first <= last")
		os.Exit(2)
	}

	fmt.Println("=== Related Content Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Items:       %d..%d (%s)\n", cfg.FirstItemID, cfg.LastItemID, cfg.Fields)
	fmt.Println()

	stats := run(cfg)
	report(stats, cfg.Duration)
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	span := cfg.LastItemID - cfg.FirstItemID + 1
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int64) {
			defer wg.Done()
			for n := worker; ctx.Err() == nil; n += int64(cfg.Concurrency) {
				itemID := cfg.FirstItemID + n%span
				target := fmt.Sprintf("%s/api/v1/items/%d/related?posts_per_page=%d&fields=%s",
					cfg.BaseURL, itemID, cfg.PostsPerPage, cfg.Fields)
				start := time.Now()
				status, hit, err := fetch(ctx, client, target)
				if ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), status, hit, err)
			}
		}(int64(w))
	}
	wg.Wait()
	return stats
}

func fetch(ctx context.Context, client *http.Client, target string) (status int, cacheHit bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, false, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, body.CacheHit, nil
}

func report(stats *Stats, duration time.Duration) {
	total := stats.total.Load()
	success := stats.success.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Failed:          %d\n", stats.failed.Load())
	if total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.1f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
