package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/erain9/clobreplay/pkg/server"
)

const (
	maxLatency = int64(time.Minute / time.Microsecond)
	sigFigs    = 3
)

type loadConfig struct {
	logName     string
	workers     int
	perWorker   int
	rps         int
	seed        int64
	instruments []string
	records     int
}

// latencyRecorder collects per-request latencies in microseconds
type latencyRecorder struct {
	mu     sync.Mutex
	hist   *hdrhistogram.Histogram
	errors atomic.Int64
	first  atomic.Value
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{hist: hdrhistogram.New(1, maxLatency, sigFigs)}
}

func (r *latencyRecorder) record(d time.Duration, err error) {
	if err != nil {
		if r.errors.Add(1) == 1 {
			r.first.Store(err)
		}
		return
	}
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	r.mu.Lock()
	_ = r.hist.RecordValue(us)
	r.mu.Unlock()
}

func (r *latencyRecorder) firstError() error {
	if err, ok := r.first.Load().(error); ok {
		return err
	}
	return nil
}

func main() {
	grpcAddr := flag.String("grpc-addr", "localhost:50051", "gRPC server address")
	logName := flag.String("log", "", "Name of the order log to query (defaults to the first served log)")
	workers := flag.Int("workers", 50, "Number of concurrent workers")
	perWorker := flag.Int("queries", 100, "Queries per worker")
	rps := flag.Int("rps", 200, "Maximum queries per second across all workers")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for query selection")
	flag.Parse()

	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	client := server.NewSnapshotServiceClient(conn)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := loadConfig{
		logName:   *logName,
		workers:   *workers,
		perWorker: *perWorker,
		rps:       *rps,
		seed:      *seed,
	}
	if err := resolveTarget(ctx, client, &cfg); err != nil {
		log.Fatalf("Failed to resolve target log: %v", err)
	}
	log.Printf("Querying log %s: %d records, %d instruments", cfg.logName, cfg.records, len(cfg.instruments))

	start := time.Now()
	rec := run(ctx, client, cfg)
	duration := time.Since(start)

	printReport(rec, duration, cfg)
	if err := rec.firstError(); err != nil {
		log.Printf("First error: %v", err)
		os.Exit(1)
	}
}

// resolveTarget picks the log to query and learns its shape from the server
func resolveTarget(ctx context.Context, client *server.SnapshotServiceClient, cfg *loadConfig) error {
	resp, err := client.ListLogs(ctx, &server.ListLogsRequest{})
	if err != nil {
		return err
	}
	for _, info := range resp.Logs {
		if cfg.logName == "" || info.Name == cfg.logName {
			if info.Records == 0 || len(info.Instruments) == 0 {
				return fmt.Errorf("log %s is empty", info.Name)
			}
			cfg.logName = info.Name
			cfg.records = info.Records
			cfg.instruments = info.Instruments
			return nil
		}
	}
	if cfg.logName == "" {
		return errors.New("server has no logs loaded")
	}
	return fmt.Errorf("log %s not served", cfg.logName)
}

// run fires workers*perWorker random queries under a shared rate limit
func run(ctx context.Context, client *server.SnapshotServiceClient, cfg loadConfig) *latencyRecorder {
	limiter := rate.NewLimiter(rate.Limit(cfg.rps), cfg.rps)
	rec := newLatencyRecorder()

	var wg sync.WaitGroup
	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(cfg.seed + int64(workerID)))
			for j := 0; j < cfg.perWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				req := randomQuery(rng, cfg)
				begin := time.Now()
				_, err := client.Query(ctx, req)
				rec.record(time.Since(begin), err)
			}
		}(i)
	}
	wg.Wait()
	return rec
}

func randomQuery(rng *rand.Rand, cfg loadConfig) *server.QueryRequest {
	return &server.QueryRequest{
		Log:        cfg.logName,
		Instrument: cfg.instruments[rng.Intn(len(cfg.instruments))],
		Index:      rng.Int63n(int64(cfg.records)),
	}
}

func printReport(rec *latencyRecorder, duration time.Duration, cfg loadConfig) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	total := rec.hist.TotalCount()
	log.Printf("Load test completed in %v", duration)
	log.Printf("Queries attempted: %d, succeeded: %d, failed: %d", cfg.workers*cfg.perWorker, total, rec.errors.Load())
	if total == 0 {
		return
	}
	log.Printf("Throughput: %.1f queries/s", float64(total)/duration.Seconds())
	log.Printf("Latency (us): mean=%.0f p50=%d p90=%d p99=%d max=%d",
		rec.hist.Mean(),
		rec.hist.ValueAtQuantile(50),
		rec.hist.ValueAtQuantile(90),
		rec.hist.ValueAtQuantile(99),
		rec.hist.Max(),
	)
}
