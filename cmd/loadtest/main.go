package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Сценарий нагрузки: N конкурентных createOrder по одному товару. Итог
// показывает, сколько заказов прошло и сколько упёрлось в остаток склада.

const idempotencyHeader = "Idempotency-Key"

type config struct {
	baseURL     string
	total       int
	concurrency int
	timeout     time.Duration
	customerID  string
	productID   string
	qty         int32
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeOutOfStock
	outcomeBusinessError
	outcomeTransportError
)

type result struct {
	outcome outcome
	latency time.Duration
	detail  string
}

type latencySummary struct {
	Min float64
	Max float64
	Avg float64
	P50 float64
	P95 float64
	P99 float64
}

func parseConfig() (config, error) {
	var cfg config
	var timeoutValue string
	var qty int

	flag.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "base URL of the order service")
	flag.IntVar(&cfg.total, "total", 400, "total createOrder calls to execute")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&cfg.customerID, "customer", "demo-customer", "customer id to order for")
	flag.StringVar(&cfg.productID, "product", "demo-product", "product id to order")
	flag.IntVar(&qty, "qty", 1, "quantity per order")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	if cfg.total <= 0 {
		return cfg, errors.New("total must be > 0")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	cfg.qty = int32(qty)
	if strings.TrimSpace(cfg.customerID) == "" {
		return cfg, errors.New("customer is required")
	}
	if strings.TrimSpace(cfg.productID) == "" {
		return cfg, errors.New("product is required")
	}

	return cfg, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.timeout}
	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())

	jobs := make(chan int, cfg.concurrency*2)
	results := make(chan result, cfg.total)
	var wg sync.WaitGroup

	startedAt := time.Now()
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- createOrder(client, cfg, runID, id)
			}
		}()
	}

	go func() {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	close(results)
	duration := time.Since(startedAt)

	var created, outOfStock, business, transport int
	latencies := make([]float64, 0, cfg.total)
	for r := range results {
		latencies = append(latencies, float64(r.latency.Microseconds())/1000.0)
		switch r.outcome {
		case outcomeCreated:
			created++
		case outcomeOutOfStock:
			outOfStock++
		case outcomeBusinessError:
			business++
			_, _ = fmt.Fprintf(os.Stderr, "business error: %s\n", r.detail)
		case outcomeTransportError:
			transport++
			_, _ = fmt.Fprintf(os.Stderr, "transport error: %s\n", r.detail)
		}
	}

	summary := buildLatencySummary(latencies)
	fmt.Println("Load test summary")
	fmt.Printf("total=%d created=%d out_of_stock=%d business_errors=%d transport_errors=%d\n",
		cfg.total, created, outOfStock, business, transport)
	fmt.Printf("duration=%.2fs rps=%.2f\n", duration.Seconds(), float64(cfg.total)/duration.Seconds())
	fmt.Printf("latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		summary.Min, summary.Avg, summary.P50, summary.P95, summary.P99, summary.Max)

	if transport > 0 || business > 0 {
		os.Exit(1)
	}
}

func createOrder(client *http.Client, cfg config, runID string, index int) result {
	payload, _ := json.Marshal(map[string]any{
		"customerId": cfg.customerID,
		"productId":  cfg.productID,
		"quantity":   cfg.qty,
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(cfg.baseURL, "/")+"/orders", bytes.NewReader(payload))
	if err != nil {
		return result{outcome: outcomeTransportError, detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, fmt.Sprintf("lt-%s-%d", runID, index))

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return result{outcome: outcomeTransportError, latency: latency, detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return result{outcome: outcomeTransportError, latency: latency, detail: err.Error()}
	}

	classified, detail := classifyResponse(resp.StatusCode, body)
	return result{outcome: classified, latency: latency, detail: detail}
}

// classifyResponse различает успешное создание, исчерпанный остаток и прочие
// ошибки по статусу и envelope {code, message}.
func classifyResponse(status int, body []byte) (outcome, string) {
	if status == http.StatusCreated {
		return outcomeCreated, ""
	}
	if status != http.StatusOK {
		return outcomeTransportError, fmt.Sprintf("unexpected status %d: %s", status, body)
	}

	var envelope struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return outcomeTransportError, fmt.Sprintf("unparseable body: %s", body)
	}
	if envelope.Message == "product is out of stock" {
		return outcomeOutOfStock, ""
	}
	return outcomeBusinessError, fmt.Sprintf("code=%d message=%s", envelope.Code, envelope.Message)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
