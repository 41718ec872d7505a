// Command loadtest drives a running docsearch instance: it seeds a batch of
// documents for a tenant, waits for indexing to catch up, then hammers the
// search endpoint and reports latency percentiles.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const tenantHeader = "X-Tenant-Id"

type Config struct {
	BaseURL     string
	Tenant      string
	Concurrency int
	Duration    time.Duration
	SeedDocs    int
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the docsearch service")
	tenant := flag.String("tenant", "loadtest", "tenant id to run under")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seedDocs := flag.Int("seed", 100, "documents to create before the search phase")
	flag.Parse()

	queries := []string{
		"quarterly revenue report",
		"onboarding checklist",
		"incident postmortem",
		"payroll processing",
		"customer contract",
		"product roadmap",
		"compliance audit",
		"engineering handbook",
		"release notes",
		"support escalation",
		"invoice template",
		"meeting minutes",
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Tenant:      *tenant,
		Concurrency: *concurrency,
		Duration:    *duration,
		SeedDocs:    *seedDocs,
		Queries:     queries,
	}

	fmt.Println("=== Document Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Tenant:      %s\n", cfg.Tenant)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Seed docs:   %d\n", cfg.SeedDocs)
	fmt.Println()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if err := seed(client, cfg); err != nil {
		fmt.Printf("seeding failed: %v\n", err)
		os.Exit(1)
	}

	stats := runLoadTest(client, cfg)
	printReport(stats, cfg.Duration)
}

// seed creates the corpus the search phase queries against. Document bodies
// embed the query vocabulary so searches return non-empty pages.
func seed(client *http.Client, cfg Config) error {
	fmt.Printf("Seeding %d documents", cfg.SeedDocs)

	for i := 0; i < cfg.SeedDocs; i++ {
		topic := cfg.Queries[i%len(cfg.Queries)]
		payload, _ := json.Marshal(map[string]any{
			"title":   fmt.Sprintf("%s %d", topic, i),
			"content": fmt.Sprintf("Load test document %d covering %s and related operational material.", i, topic),
			"metadata": map[string]string{
				"source": "loadtest",
			},
		})

		req, err := http.NewRequest(http.MethodPost, cfg.BaseURL+"/api/v1/documents", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(tenantHeader, cfg.Tenant)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("create returned %d", resp.StatusCode)
		}

		if i%20 == 0 {
			fmt.Print(".")
		}
	}

	// Give the indexing workers a moment to drain the task topic.
	fmt.Println(" waiting for indexing")
	time.Sleep(3 * time.Second)
	return nil
}

func runLoadTest(client *http.Client, cfg Config) *Stats {
	stats := NewStats()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			queryIdx := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				page := queryIdx%3 + 1
				queryIdx++

				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&page=%d&size=10",
					cfg.BaseURL, url.QueryEscape(query), page)

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.RecordRequest(0, 0, err)
					continue
				}
				req.Header.Set(tenantHeader, cfg.Tenant)

				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)

				if err != nil {
					stats.RecordRequest(duration, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.RecordRequest(duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		count := stats.statusCodes[code].Load()
		fmt.Printf("  %d: %d\n", code, count)
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
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
