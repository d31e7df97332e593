package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/example/cdo-batch/internal/batch"
	"github.com/example/cdo-batch/internal/events"
	"github.com/spf13/cobra"
)

func newReportCmd(clock clockwork.Clock) *cobra.Command {
	var inputPath string
	var summaryPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate aggregate stats from a convert summary file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}

			summary, err := readRunSummary(inputPath)
			if err != nil {
				return err
			}

			stats := reportStats(inputPath, summary, clock.Now().UTC())

			emitter := events.NewEmitter(cmd.OutOrStdout()).WithClock(clock.Now)
			if err := emitter.Emit(events.Event{Type: events.TypeReport, RunID: summary.RunID, Message: "Report generated", Fields: stats}); err != nil {
				return err
			}

			if summaryPath != "" {
				if err := writeJSON(summaryPath, stats); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Summary written to %s\n", summaryPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Path to a summary JSON written by convert --summary-file")
	cmd.Flags().StringVar(&summaryPath, "summary-file", "", "Optional path to store report JSON")
	if err := cmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}

	return cmd
}

func readRunSummary(path string) (batch.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return batch.Summary{}, err
	}

	var summary batch.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return batch.Summary{}, fmt.Errorf("parse summary %s: %w", path, err)
	}
	return summary, nil
}

func reportStats(input string, s batch.Summary, now time.Time) map[string]any {
	var total, slowest time.Duration
	var slowestFile string
	var invoked int
	failedFiles := []string{}

	for _, o := range s.Outcomes {
		if o.Status == batch.StatusConverted || o.Status == batch.StatusFailed {
			invoked++
			total += o.Duration
			if o.Duration > slowest {
				slowest = o.Duration
				slowestFile = o.Source
			}
		}
		if o.Status == batch.StatusFailed {
			failedFiles = append(failedFiles, o.Source)
		}
	}

	stats := map[string]any{
		"input":       input,
		"generatedAt": now.Format(time.RFC3339),
		"inputDir":    s.InputDir,
		"outputDir":   s.OutputDir,
		"dryRun":      s.DryRun,
		"matched":     s.Matched,
		"converted":   s.Converted,
		"failed":      s.Failed,
		"skipped":     s.Skipped,
		"planned":     s.Planned,
		"noMatches":   s.NoMatches,
		"failedFiles": failedFiles,
		"runSeconds":  s.Duration().Seconds(),
	}

	if invoked > 0 {
		stats["successRate"] = float64(s.Converted) / float64(invoked)
		stats["meanSeconds"] = (total / time.Duration(invoked)).Seconds()
		stats["slowestFile"] = slowestFile
		stats["slowestSeconds"] = slowest.Seconds()
	}

	if !s.FinishedAt.IsZero() {
		stats["ageSeconds"] = now.Sub(s.FinishedAt).Round(time.Second).Seconds()
	}

	return stats
}
