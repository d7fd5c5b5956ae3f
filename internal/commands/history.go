package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"shellpilot/internal/history"
)

func (s *Service) History(ctx context.Context, serverNameOrID string, limit int, verbose bool, stdOut io.Writer, errOut io.Writer) {
	serverID := ""

	if serverNameOrID != "" {
		server, err := s.serverLookup().GetByName(ctx, serverNameOrID)

		if err != nil {
			fmt.Fprintf(errOut, "❌ Error: %v\n", err)
			return
		}

		serverID = server.ID
	}

	records, err := s.HistoryRepository.List(ctx, serverID, limit)

	if err != nil {
		fmt.Fprintf(errOut, "Error getting execution history: %v\n", err)
		return
	}

	if len(records) == 0 {
		fmt.Fprintf(stdOut, "No executions recorded yet.\n")
		return
	}

	if verbose {
		for _, record := range records {
			printExecution(stdOut, record)
		}
		return
	}

	w := tabwriter.NewWriter(stdOut, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "STARTED\tSTATUS\tRISK\tCOMMANDS\tPROMPT\tID\n")

	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			record.CreatedAt.Local().Format(time.DateTime),
			record.Status,
			record.RiskLevel,
			len(record.Results), len(record.Commands),
			truncate(record.Prompt, 48),
			record.ID,
		)
	}

	_ = w.Flush()
}

func printExecution(w io.Writer, record *history.ExecutionRecord) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(w, "Execution %s (%s, risk %s)\n", record.ID, record.Status, record.RiskLevel)
	fmt.Fprintf(w, "Started:  %s\n", record.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Finished: %s\n", record.FinishedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Prompt:   %s\n", record.Prompt)

	if record.DryRun {
		fmt.Fprintf(w, "Dry run:  yes\n")
	}

	for _, result := range record.Results {
		mark := "✅"

		if !result.Success {
			mark = "❌"
		}

		fmt.Fprintf(w, "  %s $ %s (exit %d)\n", mark, result.Command, result.ExitCode)
	}

	if record.Analysis != nil {
		fmt.Fprintf(w, "Summary:  %s\n", record.Analysis.Summary)
	} else if record.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", record.Error)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)

	if len(runes) <= n {
		return s
	}

	return string(runes[:n-1]) + "…"
}
