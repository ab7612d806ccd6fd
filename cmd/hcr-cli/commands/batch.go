package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"buildingsearch/internal/query"

	"github.com/spf13/cobra"
)

var batchAction *string

func init() {
	batchAction = batchCmd.Flags().StringP("action", "a", "scrape", "What to do for every target: scrape or count.")
	rootCmd.AddCommand(batchCmd)
}

// readTargets reads "county,zip" lines, blank lines and lines starting with
// # are skipped.
func readTargets(r io.Reader) ([]query.Target, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var targets []query.Target
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		target, err := query.NewTarget(strings.TrimSpace(record[0]), strings.TrimSpace(record[1]))
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

var batchCmd = &cobra.Command{
	Use:   "batch [--action scrape|count] <targets.csv | ->",
	Short: "Runs a query for every county,zip line of a file, one session each.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := query.ParseAction(*batchAction)
		if err != nil {
			return err
		}

		in := io.Reader(os.Stdin)
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		targets, err := readTargets(in)
		if err != nil {
			return err
		}
		return run(cmd, action, targets)
	},
}
