// Package main runs a reconciliation of a historical exploit transaction
// against its local reproduction.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/config"
	"txrecon/internal/observability"
	"txrecon/internal/pipeline"
	"txrecon/internal/registry"
	"txrecon/internal/repro"
	"txrecon/internal/sink"
	"txrecon/internal/storage/clickhouse"
	"txrecon/internal/storage/migrations"
	"txrecon/internal/storage/postgres"
	"txrecon/internal/tracecache"
	"txrecon/internal/tracing"
	"txrecon/internal/verification"
)

func main() {
	logger := log.New(os.Stderr, "[reconcile] ", log.LstdFlags)

	settings, err := config.Load()
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}

	flag.StringVar(&settings.TxHash, "tx", settings.TxHash, "Target transaction hash (default: from the victims file)")
	flag.StringVar(&settings.Network, "network", settings.Network, "Network name")
	flag.BoolVar(&settings.ForceRefresh, "refresh", settings.ForceRefresh, "Fetch the trace even when cached")
	flag.StringVar(&settings.VictimsFile, "victims", settings.VictimsFile, "Expectations JSON (victims + flash mint)")
	flag.StringVar(&settings.TokensFile, "tokens", settings.TokensFile, "Token registry JSON")
	flag.StringVar(&settings.ReproFixture, "fixture", settings.ReproFixture, "Reproduction fixture JSON")
	flag.StringVar(&settings.CacheDir, "cache-dir", settings.CacheDir, "Trace cache directory")
	flag.StringVar(&settings.OutputDir, "out", settings.OutputDir, "Report output directory")
	flag.StringVar(&settings.MetricsFile, "metrics-file", settings.MetricsFile, "Prometheus textfile path")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	if err := run(ctx, logger, settings); err != nil {
		logger.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, s *config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	exp, err := verification.LoadExpectations(s.VictimsFile)
	if err != nil {
		return err
	}
	if s.Network == config.DefaultNetwork && exp.Network != "" {
		s.Network = exp.Network
	}

	reg := registry.Default()
	if s.TokensFile != "" {
		loaded, err := registry.LoadFile(s.TokensFile)
		if err != nil {
			return err
		}
		reg.Merge(loaded)
	}

	src, closeRepro, err := reproSource(ctx, logger, s)
	if err != nil {
		return err
	}
	defer closeRepro()

	traceSrc := tracing.NewHTTPClient(s.TraceRPCURL, s.TraceAccessKey, tracing.WithTimeout(s.TraceTimeout))
	rec := pipeline.NewReconciler(pipeline.Params{
		TxHash:       s.TxHash,
		Network:      s.Network,
		ForceRefresh: s.ForceRefresh,
		TraceTimeout: s.TraceTimeout,
		OutputDir:    s.OutputDir,
	}, *exp, traceSrc, src).
		WithRegistry(reg).
		WithLogger(logger)

	var cache tracecache.Cache = tracecache.NewFileCache(s.CacheDir)

	if s.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, s.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		cache = tracecache.Chain{cache, tracecache.NewStoreCache(postgres.NewTraceCacheStore(pool))}
		rec.WithReportStore(postgres.NewReportStore(pool))
		logger.Printf("Archiving reports to Postgres")
	}
	rec.WithCache(cache)

	if s.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, s.ClickHouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		rec.WithTransferStore(clickhouse.NewTransferStore(conn))
		logger.Printf("Archiving transfers to ClickHouse")
	}

	if s.KafkaBrokers != "" {
		k, err := sink.NewKafkaSink(s.KafkaBrokers, s.KafkaTopic, nil)
		if err != nil {
			return err
		}
		defer k.Close()
		rec.WithSink(k)
		logger.Printf("Publishing reports to Kafka topic %s", s.KafkaTopic)
	}

	if s.MetricsFile != "" {
		rec.WithMetrics(observability.NewMetrics(""), s.MetricsFile)
	}

	res, err := rec.Run(ctx)
	if res != nil && res.ReportPath != "" {
		fmt.Printf("\nReport: %s\n", res.ReportPath)
	}
	return err
}

// reproSource builds the fixture or live-node reproduction source.
func reproSource(ctx context.Context, logger *log.Logger, s *config.Settings) (repro.Source, func(), error) {
	if !s.LiveRepro() {
		return repro.NewFixtureSource(s.ReproFixture), func() {}, nil
	}

	node, cleanup, err := repro.DialNode(ctx, s.LocalRPCURL, s.LocalWSURL, common.HexToHash(s.LocalTxHash))
	if err != nil {
		return nil, nil, err
	}
	node.WithLogger(log.New(logger.Writer(), "[repro] ", log.LstdFlags))

	if s.ReproABI != "" {
		addrs := make([]common.Address, 0, len(s.ReproAddresses))
		for _, a := range s.ReproAddresses {
			if !common.IsHexAddress(a) {
				cleanup()
				return nil, nil, fmt.Errorf("%w: REPRO_EVENT_ADDRESSES: invalid address %q", config.ErrConfiguration, a)
			}
			addrs = append(addrs, common.HexToAddress(a))
		}
		dec, err := repro.LoadEventDecoder(s.ReproABI, addrs...)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		node.WithDecoder(dec)
	}
	return node, cleanup, nil
}
