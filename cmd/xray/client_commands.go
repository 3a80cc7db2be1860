package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/xray/client"
	"github.com/brojonat/xray/service/helius"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the xray server",
		Subcommands: []*cli.Command{
			clientParseCommand(),
			clientTypesCommand(),
			clientStreamCommand(),
			clientStartJobCommand(),
			clientJobStatusCommand(),
		},
	}
}

func newHTTPClient(c *cli.Context, timeout time.Duration) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: timeout}, logger)
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "Request timeout",
		Value:   30 * time.Second,
	}
}

func clientParseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Classify transactions through the server",
		Description: `Send one enriched transaction (JSON object) to /api/v1/transactions/parse, or an
array to /api/v1/transactions/parse-batch, and print the results.`,
		Flags: append(inputFlags(), timeoutFlag()),
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return err
			}

			printer, err := newResultPrinter(c)
			if err != nil {
				return err
			}

			cl := newHTTPClient(c, c.Duration("timeout"))
			ctx := context.Background()
			address := c.String("address")

			if !isJSONArray(data) {
				parsed, err := cl.ParseRaw(ctx, data, address)
				if err != nil {
					return fmt.Errorf("failed to parse transaction: %w", err)
				}
				return printer.print(*parsed, parsed)
			}

			results, err := cl.ParseBatchRaw(ctx, data, address)
			if err != nil {
				return fmt.Errorf("failed to parse batch: %w", err)
			}
			for _, r := range results {
				if err := printer.print(r.Parsed, r.Parsed); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func clientTypesCommand() *cli.Command {
	return &cli.Command{
		Name:  "types",
		Usage: "List the transaction types the server can classify",
		Flags: []cli.Flag{timeoutFlag()},
		Action: func(c *cli.Context) error {
			types, err := newHTTPClient(c, c.Duration("timeout")).Types(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list types: %w", err)
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, types, true)
			}
			for _, t := range types {
				fmt.Fprintln(c.App.Writer, t)
			}
			return nil
		},
	}
}

func clientStreamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Follow classified transactions over SSE",
		ArgsUsage: "[WALLET_ADDRESS]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "Only print events for which every jq expression is truthy (repeatable)",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many events (0 streams forever)",
			},
		},
		Action: func(c *cli.Context) error {
			address := c.Args().Get(0)

			var filters []*gojq.Code
			for _, expr := range c.StringSlice("must-jq") {
				code, err := compileJQ(expr)
				if err != nil {
					return err
				}
				filters = append(filters, code)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				target := address
				if target == "" {
					target = "all addresses"
				}
				fmt.Fprintf(os.Stderr, "Streaming classified transactions for %s... (Ctrl-C to exit)\n\n", target)
			}

			limit := c.Int("count")
			seen := 0
			err := newHTTPClient(c, 30*time.Second).Stream(ctx, address, func(e *client.Event) error {
				for _, f := range filters {
					if !matchesJQ(f, e) {
						return nil
					}
				}

				seen++
				if jsonOutput {
					if err := writeJSON(c.App.Writer, e, true); err != nil {
						return err
					}
				} else {
					printEvent(c, seen, e)
				}

				if limit > 0 && seen >= limit {
					return client.ErrStopStream
				}
				return nil
			})
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("stream failed: %w", err)
			}
			return nil
		},
	}
}

func printEvent(c *cli.Context, n int, e *client.Event) {
	w := c.App.Writer
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Transaction #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:    %s\n", e.Signature)
	fmt.Fprintf(w, "Type:         %s\n", e.Type)
	fmt.Fprintf(w, "Source:       %s\n", e.Source)
	fmt.Fprintf(w, "Primary User: %s\n", e.PrimaryUser)
	fmt.Fprintf(w, "Fee:          %g SOL\n", e.Fee)
	fmt.Fprintf(w, "Time:         %s\n", e.Timestamp.Format(time.RFC3339))
	for _, a := range e.Transaction.Actions {
		asset := a.Sent
		if asset == "" {
			asset = a.Received
		}
		fmt.Fprintf(w, "  %-22s %g %s (%s -> %s)\n", a.ActionType, a.Amount, asset, a.From, a.To)
	}
	fmt.Fprintln(w)
}

func clientStartJobCommand() *cli.Command {
	return &cli.Command{
		Name:  "job-start",
		Usage: "Submit a batch for asynchronous classification",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the JSON array of enriched transactions from a file instead of stdin",
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Narrate actions from this wallet's point of view",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish the classified transactions to the configured sink",
			},
			timeoutFlag(),
		},
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return err
			}
			txs, err := helius.DecodeBytes(data)
			if err != nil {
				return fmt.Errorf("failed to decode input: %w", err)
			}

			id, err := newHTTPClient(c, c.Duration("timeout")).StartClassifyJob(context.Background(), txs, c.String("address"), c.Bool("publish"))
			if err != nil {
				return fmt.Errorf("failed to start job: %w", err)
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, map[string]interface{}{"workflow_id": id, "count": len(txs)}, true)
			}
			fmt.Fprintf(c.App.Writer, "✓ Classify job started\n")
			fmt.Fprintf(c.App.Writer, "  Workflow ID:  %s\n", id)
			fmt.Fprintf(c.App.Writer, "  Transactions: %d\n", len(txs))
			return nil
		},
	}
}

func clientJobStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "job-status",
		Usage:     "Show the status of a classify job",
		ArgsUsage: "WORKFLOW_ID",
		Flags:     []cli.Flag{timeoutFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("workflow ID is required")
			}

			job, err := newHTTPClient(c, c.Duration("timeout")).GetClassifyJob(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, job, true)
			}
			fmt.Fprintf(c.App.Writer, "Workflow ID: %s\n", job.WorkflowID)
			fmt.Fprintf(c.App.Writer, "Status:      %s\n", job.Status)
			if job.Error != "" {
				fmt.Fprintf(c.App.Writer, "Error:       %s\n", job.Error)
			}
			if job.Result != nil {
				fmt.Fprintf(c.App.Writer, "Count:       %d\n", job.Result.Count)
				fmt.Fprintf(c.App.Writer, "Unknown:     %d\n", job.Result.Unknown)
				fmt.Fprintf(c.App.Writer, "Published:   %d\n", job.Result.Published)
				if job.Result.PublishFailed > 0 {
					fmt.Fprintf(c.App.Writer, "Not sent:    %d\n", job.Result.PublishFailed)
				}
				for t, n := range job.Result.ByType {
					fmt.Fprintf(c.App.Writer, "  %-28s %d\n", t, n)
				}
			}
			return nil
		},
	}
}

// isJSONArray reports whether data's first non-space byte opens an array.
func isJSONArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
