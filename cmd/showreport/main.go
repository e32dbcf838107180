// Package main re-reads a persisted comparison report and prints it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"txrecon/internal/config"
	"txrecon/internal/registry"
	"txrecon/internal/reporting"
	"txrecon/internal/storage"
	"txrecon/internal/storage/postgres"
)

func main() {
	logger := log.New(os.Stderr, "[showreport] ", log.LstdFlags)

	settings, err := config.Load()
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}

	file := flag.String("file", "", "Report file (default: <out>/<network>-comparison.json)")
	reportID := flag.String("report-id", "", "Load the report from Postgres by ID")
	history := flag.Bool("history", false, "List archived reports for -tx instead of printing one")
	format := flag.String("format", "summary", "Output format: summary, markdown, csv")
	flag.StringVar(&settings.TxHash, "tx", settings.TxHash, "Transaction hash (with -history)")
	flag.StringVar(&settings.Network, "network", settings.Network, "Network name")
	flag.StringVar(&settings.OutputDir, "out", settings.OutputDir, "Report output directory")
	flag.StringVar(&settings.TokensFile, "tokens", settings.TokensFile, "Token registry JSON")
	flag.Parse()

	ctx := context.Background()
	if err := run(ctx, settings, *file, *reportID, *history, *format); err != nil {
		logger.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s *config.Settings, file, reportID string, history bool, format string) error {
	if history || reportID != "" {
		if s.PostgresDSN == "" {
			return fmt.Errorf("%w: POSTGRES_DSN is required for -report-id and -history", config.ErrConfiguration)
		}
		pool, err := postgres.NewPool(ctx, s.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := postgres.NewReportStore(pool)

		if history {
			return printHistory(ctx, store, s.Network, s.TxHash)
		}
		rec, err := store.GetByID(ctx, reportID)
		if err != nil {
			return fmt.Errorf("report %s: %w", reportID, err)
		}
		r, err := reporting.Decode(rec.Payload)
		if err != nil {
			return err
		}
		return render(r, s, format)
	}

	if file == "" {
		file = reporting.ReportPath(s.OutputDir, s.Network)
	}
	r, err := reporting.ReadFile(file)
	if err != nil {
		return err
	}
	return render(r, s, format)
}

func printHistory(ctx context.Context, store storage.ReportStore, network, txHash string) error {
	if txHash == "" {
		return fmt.Errorf("%w: -history needs TX_HASH (or -tx)", config.ErrConfiguration)
	}
	recs, err := store.GetByTxHash(ctx, network, storage.NormalizeTxHash(txHash))
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No archived reports.")
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("%s  %s  score %3d%%  local %s\n",
			time.UnixMilli(rec.GeneratedAt).UTC().Format(time.RFC3339),
			rec.ReportID, rec.AlignmentScore, rec.LocalTxHash)
	}
	return nil
}

func render(r *reporting.ComparisonReport, s *config.Settings, format string) error {
	switch format {
	case "summary":
		reg := registry.Default()
		if s.TokensFile != "" {
			loaded, err := registry.LoadFile(s.TokensFile)
			if err != nil {
				return err
			}
			reg.Merge(loaded)
		}
		reporting.PrintSummary(os.Stdout, r, reg)
	case "markdown":
		fmt.Print(reporting.RenderMarkdown(r))
	case "csv":
		fmt.Print(reporting.RenderTransfersCSV(r.Actual.Transfers, r.Local.Transfers))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}
