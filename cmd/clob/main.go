// Command clob replays an order log interactively: each "<instrument> <index>" line prints
// the venue PnL and the instrument's book after records 0..index.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/feed"
	_ "github.com/erain9/clobreplay/pkg/feed/sqlite"
	"github.com/erain9/clobreplay/pkg/logging"
	"github.com/erain9/clobreplay/pkg/replay"
	"github.com/erain9/clobreplay/pkg/report"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

var (
	logPath     = flag.String("log", "orders.csv", "Path to the order log")
	format      = flag.String("format", feed.FormatCSV, "Log format: csv, sqlite")
	view        = flag.String("view", string(report.ViewSnapshot), "Output view: snapshot, ladder, table")
	parallelism = flag.Int("parallelism", 1, "Instruments replayed concurrently")
	logLevel    = flag.String("log_level", "warn", "Log level: debug, info, warn, error")
)

const prompt = "Please enter Ticker and max_id (or -1 -1 to quit): "

func main() {
	flag.Parse()
	logging.Setup(logging.Config{Level: *logLevel, Pretty: true, Output: os.Stderr})

	v, err := report.ParseView(*view)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid view")
	}

	orders, err := feed.Open(*format, *logPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *logPath).Msg("Failed to load order log")
	}
	log.Info().Int("records", orders.Len()).Strs("instruments", orders.Instruments()).Msg("Order log loaded")

	driver := replay.New(orders, replay.WithParallelism(*parallelism))
	if err := run(context.Background(), driver, v, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Query loop failed")
	}
}

// run reads queries from in until EOF, "quit" or "-1 -1". Bad input is reported and skipped.
func run(ctx context.Context, driver *replay.Driver, view report.View, in io.Reader, out io.Writer) error {
	errColor := color.New(color.FgRed).SprintfFunc()
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		instrument, index, quit, err := parseQuery(scanner.Text())
		if quit {
			fmt.Fprintln(out, "Exiting query...")
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, errColor("%v", err))
			continue
		}

		if err := answer(ctx, driver, view, instrument, index, out); err != nil {
			if errors.Is(err, core.ErrInvalidIndex) {
				fmt.Fprintln(out, errColor("%v", err))
				continue
			}
			return err
		}
	}
}

func answer(ctx context.Context, driver *replay.Driver, view report.View, instrument string, index int64, out io.Writer) error {
	venue, err := driver.Build(ctx, index)
	if err != nil {
		return err
	}
	if err := report.WritePnL(out, venue.CashFlow()); err != nil {
		return err
	}
	return report.Write(out, view, venue.Snapshot(instrument, index))
}

func parseQuery(line string) (instrument string, index int64, quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 1 && strings.EqualFold(fields[0], "quit") {
		return "", 0, true, nil
	}
	if len(fields) != 2 {
		return "", 0, false, fmt.Errorf("expected \"<ticker> <max_id>\", got %q", line)
	}
	if fields[0] == "-1" && fields[1] == "-1" {
		return "", 0, true, nil
	}
	index, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", 0, false, fmt.Errorf("max_id must be an integer: %q", fields[1])
	}
	return fields[0], index, false, nil
}
