package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"solana-trend-monitor/internal/config"
	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/reporting"
	"solana-trend-monitor/internal/storage"
	pgstore "solana-trend-monitor/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file with credentials")
	days := flag.Int("days", 0, "Report the last N days (default from config report.days)")
	from := flag.String("from", "", "Start date YYYY-MM-DD (overrides --days)")
	to := flag.String("to", "", "End date YYYY-MM-DD (default today)")
	outputDir := flag.String("output-dir", "", "Output directory (default from config report.output_dir)")
	flag.Parse()

	log := logger.New().WithComponent("report")

	if err := config.LoadEnv(*envFile); err != nil {
		log.WithError(err).Fatal("Failed to load environment")
	}
	cfg, err := config.LoadReport(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("Invalid timezone")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN,
		pgstore.WithMaxConns(cfg.Storage.PostgresMaxConns),
		pgstore.WithApplicationName("solana-trend-report"))
	if err != nil {
		log.WithError(err).Fatal("Error connecting to postgres")
	}
	defer pool.Close()

	var store storage.TrackingStore = pgstore.NewTrackingStore(pool)
	gen := reporting.NewGenerator(store, cfg.OffsetList()).WithLocation(loc)

	n := cfg.Report.Days
	if *days > 0 {
		n = *days
	}
	start, end := gen.LastDays(n)
	if *from != "" {
		if start, err = time.ParseInLocation(domain.DateLayout, *from, loc); err != nil {
			log.WithError(err).Fatal("Invalid --from date")
		}
	}
	if *to != "" {
		if end, err = time.ParseInLocation(domain.DateLayout, *to, loc); err != nil {
			log.WithError(err).Fatal("Invalid --to date")
		}
	}

	report, err := gen.Generate(ctx, start, end)
	if err != nil {
		log.WithError(err).Fatal("Error generating report")
	}
	if len(report.Rows) == 0 {
		fmt.Printf("No detections found between %s and %s\n", report.FromDate, report.ToDate)
		return
	}

	dir := cfg.Report.OutputDir
	if *outputDir != "" {
		dir = *outputDir
	}
	paths, err := reporting.WriteFiles(dir, report)
	if err != nil {
		log.WithError(err).Fatal("Error writing report")
	}

	fmt.Printf("Report generated for %s to %s (%d detections):\n", report.FromDate, report.ToDate, len(report.Rows))
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}
}
