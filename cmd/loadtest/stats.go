package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
)

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	byMethod    map[string][]time.Duration
	statusCodes map[codes.Code]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		byMethod:    make(map[string][]time.Duration),
		statusCodes: make(map[codes.Code]int64),
	}
}

// RecordRequest counts one call. Latencies are kept for successful calls only.
func (s *Stats) RecordRequest(method string, duration time.Duration, err error) {
	s.totalRequests.Add(1)
	code := apperrors.Code(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCodes[code]++
	if code != codes.OK {
		s.errorCount.Add(1)
		return
	}
	s.successCount.Add(1)
	s.latencies = append(s.latencies, duration)
	s.byMethod[method] = append(s.byMethod[method], duration)
}

// Methods returns the names of the methods with recorded successes, sorted.
func (s *Stats) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	methods := make([]string, 0, len(s.byMethod))
	for m := range s.byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

func (s *Stats) sortedLatencies(method string) []time.Duration {
	s.mu.Lock()
	src := s.latencies
	if method != "" {
		src = s.byMethod[method]
	}
	latencies := make([]time.Duration, len(src))
	copy(latencies, src)
	s.mu.Unlock()

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})
	return latencies
}

func printReport(w io.Writer, stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", rps)
	}

	latencies := stats.sortedLatencies("")
	if len(latencies) > 0 {
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", stddev(latencies, avg))
	}

	if methods := stats.Methods(); len(methods) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== By Method ===")
		for _, m := range methods {
			l := stats.sortedLatencies(m)
			fmt.Fprintf(w, "  %-16s n=%-7d p50=%-12s p99=%s\n", m, len(l), percentile(l, 50), percentile(l, 99))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.mu.Lock()
	statuses := make([]codes.Code, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		statuses = append(statuses, code)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	for _, code := range statuses {
		fmt.Fprintf(w, "  %s: %d\n", apperrors.CodeName(code), stats.statusCodes[code])
	}
	stats.mu.Unlock()
}

func stddev(latencies []time.Duration, avg time.Duration) time.Duration {
	var sumSquared float64
	avgFloat := float64(avg)
	for _, l := range latencies {
		diff := float64(l) - avgFloat
		sumSquared += diff * diff
	}
	return time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
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
