package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/erain9/clobreplay/pkg/feed/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := feed.DefaultGeneratorConfig()

	out := flag.String("out", "orders.csv", "Output path; .db or .sqlite writes a SQLite log, '-' writes CSV to stdout")
	rows := flag.Int("rows", defaults.Rows, "Number of orders to generate")
	tickers := flag.String("tickers", strings.Join(defaults.Tickers, ","), "Comma-separated instrument list")
	limitRate := flag.Float64("limit_rate", defaults.LimitRate, "Fraction of limit orders")
	minPrice := flag.Float64("min_price", defaults.MinPrice, "Lowest limit price")
	maxPrice := flag.Float64("max_price", defaults.MaxPrice, "Highest limit price")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := defaults
	cfg.Rows = *rows
	cfg.Tickers = splitTickers(*tickers)
	cfg.LimitRate = *limitRate
	cfg.MinPrice = *minPrice
	cfg.MaxPrice = *maxPrice

	if err := generate(context.Background(), *out, *seed, cfg, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate order log")
	}
	log.Info().
		Str("out", *out).
		Int("rows", cfg.Rows).
		Strs("tickers", cfg.Tickers).
		Int64("seed", *seed).
		Msg("Generated order log")
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// generate writes a synthetic log to out, choosing the format from its extension
func generate(ctx context.Context, out string, seed int64, cfg feed.GeneratorConfig, stdout io.Writer) error {
	orderLog, err := feed.GenerateLog(rand.New(rand.NewSource(seed)), cfg)
	if err != nil {
		return err
	}

	switch {
	case out == "-":
		return feed.WriteCSV(stdout, orderLog.Orders())
	case isSQLite(out):
		store, err := sqlite.Open(out)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Import(ctx, orderLog)
	default:
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := feed.WriteCSV(f, orderLog.Orders()); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}

func isSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		return true
	}
	return false
}
