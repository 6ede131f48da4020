package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/erain9/clobreplay/pkg/otel"
	"github.com/erain9/clobreplay/pkg/report"
	"github.com/erain9/clobreplay/pkg/server"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "The server address in the format host:port")
	view       = flag.String("view", string(report.ViewTable), "Output view for query: snapshot, ladder, table")
	timeout    = flag.Duration("timeout", 10*time.Second, "Request timeout")
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpc.NewClient(*serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otel.NewGRPCClientStatsHandler()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to server")
	}
	defer conn.Close()

	client := server.NewSnapshotServiceClient(conn)
	if err := dispatch(ctx, client, args, os.Stdout); err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("Command failed")
	}
}

func dispatch(ctx context.Context, client *server.SnapshotServiceClient, args []string, out io.Writer) error {
	switch args[0] {
	case "query":
		if len(args) != 4 {
			return fmt.Errorf("usage: query <log> <instrument> <index>")
		}
		index, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("index must be an integer: %w", err)
		}
		v, err := report.ParseView(*view)
		if err != nil {
			return err
		}
		return query(ctx, client, args[1], args[2], index, v, out)
	case "list-logs":
		return listLogs(ctx, client, out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func query(ctx context.Context, client *server.SnapshotServiceClient, logName, instrument string, index int64, v report.View, out io.Writer) error {
	resp, err := client.Query(ctx, &server.QueryRequest{Log: logName, Instrument: instrument, Index: index})
	if err != nil {
		return err
	}

	log.Info().
		Str("log", logName).
		Str("instrument", instrument).
		Int64("index", index).
		Int("sell_levels", len(resp.Snapshot.Sells)).
		Int("buy_levels", len(resp.Snapshot.Buys)).
		Msg("Received report")

	return report.Write(out, v, resp.Snapshot)
}

func listLogs(ctx context.Context, client *server.SnapshotServiceClient, out io.Writer) error {
	resp, err := client.ListLogs(ctx, &server.ListLogsRequest{})
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan).SprintfFunc()
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", cyan("Name"), cyan("Format"), cyan("Records"), cyan("Instruments"), cyan("Fingerprint"))
	for _, info := range resp.Logs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", info.Name, info.Format, info.Records, len(info.Instruments), info.Fingerprint)
	}
	return w.Flush()
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: client [-addr host:port] [-view snapshot|ladder|table] <command>")
	fmt.Fprintln(out, "  query <log> <instrument> <index>")
	fmt.Fprintln(out, "  list-logs")
	fmt.Fprintln(out, "\nExamples:")
	fmt.Fprintln(out, "  client list-logs")
	fmt.Fprintln(out, "  client -view ladder query daily 1131 2")
}
