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
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const idempotencyHeader = "Idempotency-Key"

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateConfirm loadMode = "create-confirm"
	modeFullCycle     loadMode = "full-cycle"
)

type config struct {
	baseURL     string
	total       int
	concurrency int
	timeout     time.Duration
	mode        loadMode
	jwtSecret   string
	listingID   string
	sellerID    string
	buyerTag    string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, status int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, exists := c.methods[method]
	if !exists {
		stats = &methodStats{statuses: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[fmt.Sprintf("%d", status)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods["scenario"]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		statusesCopy := make(map[string]int64, len(stats.statuses))
		for status, count := range stats.statuses {
			statusesCopy[status] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Statuses:  statusesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string

	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "order service base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-confirm | full-cycle")
	flag.StringVar(&cfg.jwtSecret, "jwt-secret", "dev-secret", "JWT secret to sign load tokens")
	flag.StringVar(&cfg.listingID, "listing", "demo-tomatoes", "listing id to order")
	flag.StringVar(&cfg.sellerID, "seller", "demo-seller", "seller id that owns the listing")
	flag.StringVar(&cfg.buyerTag, "buyer-tag", "load", "buyer id prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	switch loadMode(strings.TrimSpace(modeValue)) {
	case modeCreate, modeCreateConfirm, modeFullCycle:
		cfg.mode = loadMode(strings.TrimSpace(modeValue))
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", modeValue)
	}

	if cfg.total <= 0 {
		return cfg, errors.New("total must be > 0")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if strings.TrimSpace(cfg.listingID) == "" {
		return cfg, errors.New("listing is required")
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
	sellerToken, err := signToken(cfg.jwtSecret, cfg.sellerID, "seller")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "sign seller token: %v\n", err)
		os.Exit(1)
	}

	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, sellerToken, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "marshal report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))

	if cfg.outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.outputPath), 0o755); err == nil {
			_ = os.WriteFile(cfg.outputPath, encoded, 0o644)
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

// runScenario прогоняет один сценарий: создание заказа покупателем и,
// в зависимости от режима, подтверждение и полный жизненный цикл продавцом.
func runScenario(client *http.Client, cfg config, id int, sellerToken string, col *collector) error {
	scenarioStart := time.Now()

	buyerID := fmt.Sprintf("%s-%d", cfg.buyerTag, id)
	buyerToken, err := signToken(cfg.jwtSecret, buyerID, "buyer")
	if err != nil {
		col.record("scenario", time.Since(scenarioStart), 0, false)
		return err
	}

	createBody := map[string]interface{}{
		"items": []map[string]interface{}{
			{"listing_id": cfg.listingID, "qty": 1},
		},
		"payment_method": "cash",
		"delivery":       map[string]interface{}{"type": "pickup"},
	}

	orderID, status, err := createOrder(client, cfg, buyerToken, createBody, col)
	if err != nil {
		col.record("scenario", time.Since(scenarioStart), status, false)
		return err
	}

	steps := [][2]string{}
	switch cfg.mode {
	case modeCreateConfirm:
		steps = append(steps, [2]string{"confirmed", "confirm_order"})
	case modeFullCycle:
		steps = append(steps,
			[2]string{"confirmed", "confirm_order"},
			[2]string{"processing", "start_processing"},
			[2]string{"completed", "complete_order"},
		)
	}

	for _, step := range steps {
		if status, err = updateStatus(client, cfg, sellerToken, orderID, step[0], step[1], col); err != nil {
			col.record("scenario", time.Since(scenarioStart), status, false)
			return err
		}
	}

	col.record("scenario", time.Since(scenarioStart), http.StatusOK, true)
	return nil
}

func createOrder(client *http.Client, cfg config, token string, body map[string]interface{}, col *collector) (string, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequest(http.MethodPost, cfg.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(idempotencyHeader, uuid.NewString())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		col.record("create_order", time.Since(start), 0, false)
		return "", 0, err
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusCreated
	col.record("create_order", time.Since(start), resp.StatusCode, ok)
	if !ok {
		drained, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", resp.StatusCode, fmt.Errorf("create order: status %d: %s", resp.StatusCode, drained)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", resp.StatusCode, err
	}
	return created.ID, resp.StatusCode, nil
}

func updateStatus(client *http.Client, cfg config, token, orderID, target, method string, col *collector) (int, error) {
	payload, err := json.Marshal(map[string]string{"status": target, "note": "loadtest"})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPut, cfg.baseURL+"/orders/"+orderID+"/status", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		col.record(method, time.Since(start), 0, false)
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode == http.StatusOK
	col.record(method, time.Since(start), resp.StatusCode, ok)
	if !ok {
		return resp.StatusCode, fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func signToken(secret, sub, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func buildLatencySummary(latencies []float64) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
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
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
