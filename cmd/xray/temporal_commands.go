package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/temporal"
	"github.com/urfave/cli/v2"
	"go.temporal.io/api/workflowservice/v1"
)

// getTemporalClient dials Temporal using the global flags.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	tc, err := temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		nil,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}
	return tc, nil
}

func classifyWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Classify a batch with the Temporal worker",
		Description: `Run a ClassifyBatchWorkflow over the transactions read from stdin or --file.
By default the command waits for the result; --async prints the workflow ID and exits.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the enriched transaction JSON from a file instead of stdin",
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Narrate actions from this wallet's point of view",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish the classified transactions to the worker's sink",
			},
			&cli.BoolFlag{
				Name:  "async",
				Usage: "Start the workflow and return without waiting",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the workflow result",
				Value: 5 * time.Minute,
			},
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

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			input := temporal.ClassifyBatchInput{
				Transactions: txs,
				Viewer:       c.String("address"),
				Publish:      c.Bool("publish"),
			}

			if c.Bool("async") {
				id, err := tc.StartClassifyBatch(ctx, input)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return writeJSON(c.App.Writer, map[string]interface{}{"workflow_id": id, "task_queue": tc.TaskQueue()}, true)
				}
				fmt.Fprintf(c.App.Writer, "✓ Workflow started\n")
				fmt.Fprintf(c.App.Writer, "  Workflow ID: %s\n", id)
				fmt.Fprintf(c.App.Writer, "  Task Queue:  %s\n", tc.TaskQueue())
				return nil
			}

			result, err := tc.ClassifyBatch(ctx, input)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, result, false)
			}
			printBatchResult(c, result)
			return nil
		},
	}
}

func workflowStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a classify workflow's status, or list recent ones",
		ArgsUsage: "[workflow-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of workflows to list when no ID is given",
				Value: 20,
			},
		},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx := context.Background()

			if c.NArg() == 0 {
				return listClassifyWorkflows(ctx, c, tc)
			}

			status, err := tc.GetClassifyBatch(ctx, c.Args().First())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, status, false)
			}
			fmt.Fprintf(c.App.Writer, "Workflow ID: %s\n", status.WorkflowID)
			fmt.Fprintf(c.App.Writer, "Status:      %s\n", status.Status)
			if status.Error != "" {
				fmt.Fprintf(c.App.Writer, "Error:       %s\n", status.Error)
			}
			if status.Result != nil {
				printBatchResult(c, status.Result)
			}
			return nil
		},
	}
}

func listClassifyWorkflows(ctx context.Context, c *cli.Context, tc *temporal.Client) error {
	resp, err := tc.SDKClient().ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		Namespace: c.String("temporal-namespace"),
		PageSize:  int32(c.Int("limit")),
		Query:     fmt.Sprintf("WorkflowType = '%s'", temporal.ClassifyBatchWorkflowName),
	})
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKFLOW ID\tSTATUS\tSTARTED")
	for _, exec := range resp.GetExecutions() {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			exec.GetExecution().GetWorkflowId(),
			exec.GetStatus().String(),
			exec.GetStartTime().AsTime().Format(time.RFC3339),
		)
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nTotal: %d workflows\n", len(resp.GetExecutions()))
	return nil
}

func printBatchResult(c *cli.Context, result *temporal.ClassifyBatchResult) {
	w := c.App.Writer
	fmt.Fprintf(w, "Count:       %d\n", result.Count)
	fmt.Fprintf(w, "Unknown:     %d\n", result.Unknown)
	fmt.Fprintf(w, "Published:   %d\n", result.Published)
	if result.PublishFailed > 0 {
		fmt.Fprintf(w, "Not sent:    %d\n", result.PublishFailed)
	}
	if result.Error != nil {
		fmt.Fprintf(w, "Publish err: %s\n", *result.Error)
	}

	types := make([]string, 0, len(result.ByType))
	for t := range result.ByType {
		types = append(types, t)
	}
	sort.Strings(types)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nTYPE\tCOUNT")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%d\n", t, result.ByType[t])
	}
	tw.Flush()
}
