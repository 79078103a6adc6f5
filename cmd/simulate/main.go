package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careport/prescription-fulfillment/client"
	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/db"
)

type SimConfig struct {
	APIBaseURL        string
	Email             string
	Password          string
	Duration          time.Duration
	Workers           int
	SearchRatio       float64
	PlaceRatio        float64
	ConfirmRatio      float64
	ReadRatio         float64
	PrescriptionLimit int
	CenterLat         float64
	CenterLng         float64
	PostgresDSN       string
}

type DataPool struct {
	Prescriptions []uuid.UUID
	mu            sync.RWMutex
	orders        []uuid.UUID
}

func (dp *DataPool) AddOrder(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.orders = append(dp.orders, id)
}

func (dp *DataPool) GetRandomOrder() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.orders) == 0 {
		return uuid.Nil, false
	}
	idx := rand.Intn(len(dp.orders))
	return dp.orders[idx], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Search  OperationMetrics
	Place   OperationMetrics
	Confirm OperationMetrics
	Read    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	api     *client.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d search=%.2f place=%.2f confirm=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.SearchRatio, cfg.PlaceRatio, cfg.ConfirmRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d active prescriptions", len(dataPool.Prescriptions))

	api := client.New(cfg.APIBaseURL, client.WithHTTPClient(&http.Client{
		Timeout: 10 * time.Second,
	}))
	if err := api.Login(ctx, cfg.Email, cfg.Password); err != nil {
		log.Fatalf("login as %s: %v", cfg.Email, err)
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		api:    api,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Email:             getEnv("SIM_EMAIL", "admin@example.com"),
		Password:          getEnv("SIM_PASSWORD", "password123"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		SearchRatio:       getFloat("SIM_SEARCH_RATIO", 0.4),
		PlaceRatio:        getFloat("SIM_PLACE_RATIO", 0.2),
		ConfirmRatio:      getFloat("SIM_CONFIRM_RATIO", 0.1),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.3),
		PrescriptionLimit: getInt("SIM_PRESCRIPTION_LIMIT", 500),
		CenterLat:         getFloat("SEED_CENTER_LAT", 40.7128),
		CenterLng:         getFloat("SEED_CENTER_LNG", -74.0060),
		PostgresDSN:       baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.SearchRatio + cfg.PlaceRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.SearchRatio /= total
		cfg.PlaceRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM prescriptions
		WHERE status = 'ACTIVE' AND valid_until > now()
		LIMIT $1
	`, cfg.PrescriptionLimit)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Prescriptions = append(dataPool.Prescriptions, id)
	}

	if len(dataPool.Prescriptions) == 0 {
		return nil, fmt.Errorf("no active prescriptions loaded (run cmd/seed first)")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.SearchRatio:
				s.doSearch(ctx, rng)
			case r < s.config.SearchRatio+s.config.PlaceRatio:
				s.doPlace(ctx, rng)
			case r < s.config.SearchRatio+s.config.PlaceRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				s.doRead(ctx, rng)
			}
		}
	}
}

// randomPoint jitters around the seed center so searches land inside the
// seeded pharmacy cluster.
func (s *Simulator) randomPoint(rng *rand.Rand) client.Coordinates {
	return client.Coordinates{
		Latitude:  s.config.CenterLat + (rng.Float64()-0.5)*0.2,
		Longitude: s.config.CenterLng + (rng.Float64()-0.5)*0.2,
	}
}

func (s *Simulator) randomPrescription(rng *rand.Rand) uuid.UUID {
	return s.pool.Prescriptions[rng.Intn(len(s.pool.Prescriptions))]
}

func (s *Simulator) doSearch(ctx context.Context, rng *rand.Rand) {
	rxID := s.randomPrescription(rng)
	at := s.randomPoint(rng)

	start := time.Now()
	_, err := s.api.FindPharmacies(ctx, rxID, at, 10)
	s.metrics.Search.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) doPlace(ctx context.Context, rng *rand.Rand) {
	rxID := s.randomPrescription(rng)
	at := s.randomPoint(rng)

	pharmacies, err := s.api.FindPharmacies(ctx, rxID, at, 25)
	if err != nil || len(pharmacies) == 0 {
		return
	}

	start := time.Now()
	order, err := s.api.PlaceOrder(ctx, client.PlaceOrderRequest{
		PrescriptionID: rxID,
		PharmacyID:     pharmacies[0].ID,
	}, uuid.NewString())
	latency := time.Since(start)

	if err == nil {
		s.pool.AddOrder(order.ID)
		s.metrics.Place.Record(latency, true, false)
		return
	}
	s.metrics.Place.Record(latency, false, isConflict(err))
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	orderID, ok := s.pool.GetRandomOrder()
	if !ok {
		return
	}

	start := time.Now()
	_, err := s.api.ConfirmOrder(ctx, orderID)
	s.metrics.Confirm.Record(time.Since(start), err == nil, isConflict(err))
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	var err error
	if orderID, ok := s.pool.GetRandomOrder(); ok && rng.Intn(2) == 0 {
		_, err = s.api.GetOrder(ctx, orderID)
	} else {
		_, err = s.api.GetPrescription(ctx, s.randomPrescription(rng))
	}
	s.metrics.Read.Record(time.Since(start), err == nil, false)
}

func isConflict(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Search", &s.metrics.Search)
	printOperationReport("Place Order", &s.metrics.Place)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read", &s.metrics.Read)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failures := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failures > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failures, float64(failures)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
