// Command comply-bench measures active storage proxy latency. It reuses
// the suite's fixture builder, object store, and request encoder, but it
// performs no correctness validation: a response only needs to arrive
// with a 200 status.
//
// Usage:
//
//	comply-bench [-dims 100,1000,5000] [-repeats 3] [-op sum] [proxy-url ...]
//
// Proxy URLs default to PROXY_URL from the environment; passing several
// benchmarks them against each other on identical fixtures.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/activestorage-tools/comply/comply"
	"github.com/activestorage-tools/comply/comply/s3"
)

func main() {
	dimsFlag := flag.String("dims", "100,1000,5000", "comma list of square array dimensions")
	repeats := flag.Int("repeats", 3, "requests per proxy per fixture")
	opFlag := flag.String("op", "sum", "operation to benchmark")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "comply-bench: creating logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, *dimsFlag, *repeats, *opFlag, flag.Args()); err != nil {
		log.Error("benchmark failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, dimsFlag string, repeats int, opFlag string, proxies []string) error {
	cfg, err := comply.ConfigFromEnv()
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		proxies = []string{cfg.ProxyURL}
	}

	op, err := comply.ParseOperation(opFlag)
	if err != nil {
		return err
	}

	var dims []int
	for _, part := range strings.Split(dimsFlag, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return fmt.Errorf("comply-bench: bad dimension %q", part)
		}
		dims = append(dims, n)
	}

	ctx := context.Background()
	store, err := s3.NewStoreFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	for _, dim := range dims {
		if err := benchDim(ctx, log, cfg, store, op, dim, repeats, proxies); err != nil {
			return err
		}
	}
	return nil
}

func benchDim(ctx context.Context, log *zap.Logger, cfg *comply.Config, store comply.Store, op comply.Operation, dim, repeats int, proxies []string) error {
	c := &comply.TestCase{
		Name:      "bench",
		Operation: op,
		DType:     comply.Float32,
		Shape:     []int{dim, dim},
		Expect:    comply.ExpectSuccess,
	}
	arr := comply.NewRandom(c.DType, c.Shape, cfg.Seed)
	payload := arr.Bytes()

	key := c.FixtureKey(fmt.Sprintf("bench-%d", dim))
	log.Info("uploading fixture",
		zap.Int("dim", dim),
		zap.Float64("megabytes", float64(len(payload))/(1024*1024)),
	)
	if err := store.Put(ctx, key, payload); err != nil {
		return err
	}
	defer func() {
		if err := store.Delete(context.Background(), key); err != nil {
			log.Warn("fixture delete failed", zap.String("key", key), zap.Error(err))
		}
	}()

	req := comply.NewRequest(cfg, c, key, int64(len(payload)))
	for _, proxy := range proxies {
		var times []time.Duration
		for i := 0; i < repeats; i++ {
			elapsed, err := timeRequest(ctx, req, proxy)
			if err != nil {
				return fmt.Errorf("comply-bench: %s: %w", proxy, err)
			}
			times = append(times, elapsed)
		}
		min, mean, max := stats(times)
		log.Info("result",
			zap.String("proxy", proxy),
			zap.Int("dim", dim),
			zap.Duration("min", min),
			zap.Duration("mean", mean),
			zap.Duration("max", max),
		)
	}
	return nil
}

func timeRequest(ctx context.Context, req *comply.Request, proxy string) (time.Duration, error) {
	httpReq, err := req.HTTPRequest(ctx, proxy)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return elapsed, nil
}

func stats(times []time.Duration) (min, mean, max time.Duration) {
	min, max = times[0], times[0]
	var total time.Duration
	for _, t := range times {
		total += t
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	return min, total / time.Duration(len(times)), max
}
