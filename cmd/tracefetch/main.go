// Package main fetches a transaction trace into the trace cache so later
// reconciliation runs work offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"txrecon/internal/config"
	"txrecon/internal/domain"
	"txrecon/internal/extract"
	"txrecon/internal/reporting"
	"txrecon/internal/tracecache"
	"txrecon/internal/tracing"
)

func main() {
	logger := log.New(os.Stderr, "[tracefetch] ", log.LstdFlags)

	settings, err := config.Load()
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}

	flag.StringVar(&settings.TxHash, "tx", settings.TxHash, "Transaction hash")
	flag.StringVar(&settings.Network, "network", settings.Network, "Network name")
	flag.StringVar(&settings.CacheDir, "cache-dir", settings.CacheDir, "Trace cache directory")
	force := flag.Bool("force", settings.ForceRefresh, "Re-fetch even when cached")
	flag.Parse()

	if settings.TxHash == "" {
		logger.Fatalf("Config: %v: missing TX_HASH (or -tx)", config.ErrConfiguration)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, logger, settings, *force); err != nil {
		logger.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, s *config.Settings, force bool) error {
	cache := tracecache.NewFileCache(s.CacheDir)
	path := cache.Path(s.Network, s.TxHash)

	if !force {
		if entry, err := cache.Load(ctx, s.Network, s.TxHash); err == nil {
			logger.Printf("Already cached (fetched %s)", entry.FetchedAt.Format("2006-01-02 15:04:05"))
			printTrace(path, entry.Trace)
			return nil
		}
	}

	client := tracing.NewHTTPClient(s.TraceRPCURL, s.TraceAccessKey, tracing.WithTimeout(s.TraceTimeout))
	fetchCtx, cancel := context.WithTimeout(ctx, s.TraceTimeout)
	defer cancel()

	trace, err := client.FetchTrace(fetchCtx, s.TxHash, s.Network)
	if err != nil {
		return err
	}
	if err := cache.Save(ctx, s.Network, s.TxHash, trace); err != nil {
		return err
	}
	printTrace(path, trace)
	return nil
}

func printTrace(path string, trace *domain.TraceResult) {
	_, stats := extract.TransfersWithStats(trace.RawLogs(), domain.OriginActual)
	fmt.Printf("Cache file: %s\n", path)
	fmt.Printf("Logs: %d (transfers %d, malformed %d)\n", stats.Total, stats.Transfers, stats.Malformed)
	fmt.Printf("Call nodes: %d, asset changes: %d\n", len(trace.Trace), len(trace.AssetChanges))
	if excerpt := reporting.CallTraceExcerpt(trace.Trace, reporting.ExcerptNodes); excerpt != "" {
		fmt.Println(excerpt)
	}
}
