package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/brojonat/xray/service/classifier"
	"github.com/brojonat/xray/service/proton"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func inputFlags() []cli.Flag {
	return []cli.Flag{
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
		&cli.StringFlag{
			Name:  "jq",
			Usage: "jq expression applied to each classified transaction before printing",
		},
		&cli.StringSliceFlag{
			Name:  "must-jq",
			Usage: "Only print transactions for which every jq expression is truthy (repeatable)",
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Classify enriched transactions locally",
		Description: `Read one Helius enriched transaction (a JSON object) or many (a JSON array)
from stdin or --file and print the classified form of each.

Examples:
  curl -s "$HELIUS_URL" | xray parse --address DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK
  xray parse -f txs.json --must-jq '.type == "SWAP"' --jq '.actions'
  xray parse -f txs.json --summary`,
		Flags: append(inputFlags(),
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Include the raw enriched transaction alongside each result",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print counts by type instead of the transactions",
			},
		),
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return err
			}

			printer, err := newResultPrinter(c)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError, // Only errors to stderr
			}))

			results, err := classifier.New(nil, logger, 0).ClassifyJSON(context.Background(), data, c.String("address"))
			if err != nil {
				return fmt.Errorf("failed to classify input: %w", err)
			}

			if c.Bool("summary") {
				parsed := make([]proton.Transaction, len(results))
				for i, r := range results {
					parsed[i] = r.Parsed
				}
				return writeJSON(c.App.Writer, classifier.Summarize(parsed), c.Bool("json"))
			}

			for _, r := range results {
				var v interface{} = r.Parsed
				if c.Bool("raw") {
					v = r
				}
				if err := printer.print(r.Parsed, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func typesCommand() *cli.Command {
	return &cli.Command{
		Name:  "types",
		Usage: "List the transaction types with a dedicated parser",
		Action: func(c *cli.Context) error {
			types := proton.SupportedTypes()
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

// resultPrinter filters and shapes classified transactions for output.
type resultPrinter struct {
	w       io.Writer
	filters []*gojq.Code
	shape   *gojq.Code
	compact bool
}

func newResultPrinter(c *cli.Context) (*resultPrinter, error) {
	p := &resultPrinter{w: c.App.Writer, compact: c.Bool("json")}

	for _, expr := range c.StringSlice("must-jq") {
		code, err := compileJQ(expr)
		if err != nil {
			return nil, err
		}
		p.filters = append(p.filters, code)
	}

	if expr := c.String("jq"); expr != "" {
		code, err := compileJQ(expr)
		if err != nil {
			return nil, err
		}
		p.shape = code
	}

	return p, nil
}

// print writes v unless tx fails a --must-jq filter.
func (p *resultPrinter) print(tx proton.Transaction, v interface{}) error {
	for _, f := range p.filters {
		if !matchesJQ(f, tx) {
			return nil
		}
	}

	if p.shape == nil {
		return writeJSON(p.w, v, p.compact)
	}

	out, err := runJQ(p.shape, v)
	if err != nil {
		return fmt.Errorf("jq: %w", err)
	}
	for _, o := range out {
		if err := writeJSON(p.w, o, p.compact); err != nil {
			return err
		}
	}
	return nil
}

// readInput returns the --file contents, or stdin when no file is given.
func readInput(c *cli.Context) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path := c.String("file"); path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(c.App.Reader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("no input: pipe JSON on stdin or pass --file")
	}
	return data, nil
}

func writeJSON(w io.Writer, v interface{}, compact bool) error {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
