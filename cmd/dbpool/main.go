// dbpool exercises the shared connection pool against a live database.
//
// It starts a number of workers that each borrow a connection, hold it for a
// while, run one statement and hand the connection back.
//
// Usage:
//
//	dbpool [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "mysql.ini", or $DBPOOL_CONFIG)
//	-workers int
//	    Number of concurrent workers (default 10)
//	-hold duration
//	    How long each worker keeps its connection (default 100ms)
//	-statement string
//	    Statement each worker executes
//	-metrics string
//	    Address to serve Prometheus metrics on, e.g. ":9090"
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-i2p/dbpool/lib/manager"
	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/version"
)

const defaultStatement = "INSERT INTO studentinfo(stuName,stuNo,score) VALUES('zhang san',111,66)"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", manager.DefaultPath(), "Path to configuration file")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	hold := flag.Duration("hold", 100*time.Millisecond, "How long each worker keeps its connection")
	statement := flag.String("statement", defaultStatement, "Statement each worker executes")
	metricsAddr := flag.String("metrics", "", "Address to serve Prometheus metrics on (disabled if empty)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dbpool - bounded self-growing database connection pool\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  dbpool [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("dbpool version %s\n", version.Full())
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if *workers <= 0 {
		logger.Error("workers must be positive", "workers", *workers)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	manager.Configure(*configPath)
	p, err := manager.Get()
	if err != nil {
		logger.Error("failed to start pool", "config", *configPath, "error", err)
		return 1
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	build := version.Get()
	logger.Info("dbpool started",
		"version", build.Version,
		"commit", build.GitCommit,
		"go", build.GoVersion,
		"config", *configPath,
		"workers", *workers,
		"maxSize", p.Config().MaxSize)

	start := time.Now()
	failed := runWorkers(ctx, p, *workers, *hold, *statement, logger)

	stats := p.Stats()
	logger.Info("workers finished",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"failed", failed,
		"open", stats.NumOpen,
		"idle", stats.NumIdle,
		"created", stats.Created,
		"timeouts", stats.AcquireTimeouts)

	if ctx.Err() != nil {
		logger.Info("received signal, shutting down")
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// runWorkers starts n workers and waits for all of them. It returns the
// number of workers that failed.
func runWorkers(ctx context.Context, p *pool.Pool, n int, hold time.Duration, stmt string, logger *slog.Logger) int64 {
	var wg sync.WaitGroup
	var failed atomic.Int64

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := work(ctx, p, hold, stmt); err != nil {
				failed.Add(1)
				logger.Warn("worker failed", "worker", id, "error", err)
			}
		}(i)
	}
	wg.Wait()
	return failed.Load()
}

func work(ctx context.Context, p *pool.Pool, hold time.Duration, stmt string) error {
	return p.Do(ctx, func(h *pool.Handle) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hold):
		}
		if _, err := h.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("update error: %w", err)
		}
		return nil
	})
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metrics.RecordStartTime()

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
