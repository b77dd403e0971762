// Package report renders the final per-node outcome of a pipeline run.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pterm/pterm"

	"github.com/dpipe/dpipe/pkg/executor"
)

// PrintResults prints the per-node run report as a table.
func PrintResults(results []executor.Result) {
	WriteResults(os.Stdout, results)
}

// WriteResults renders the per-node run report to the given writer.
func WriteResults(writer io.Writer, results []executor.Result) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader([]string{"Node", "Status", "Exit", "Details"})
	table.SetAutoWrapText(false)

	for _, result := range results {
		exitCode := ""
		if result.Status == executor.StatusFailed {
			exitCode = strconv.Itoa(result.ExitCode)
		}
		table.Append([]string{
			result.NodeName,
			statusLabel(result.Status),
			exitCode,
			result.FailureMessage,
		})
	}

	table.Render()
}

func statusLabel(status executor.Status) string {
	switch status {
	case executor.StatusSucceeded:
		return pterm.Green(status.String())
	case executor.StatusFailed:
		return pterm.Red(status.String())
	case executor.StatusSkipped:
		return pterm.Yellow(status.String())
	default:
		return status.String()
	}
}

// CheckError looks for failures in the run results and returns an error if
// any is found. Skipped nodes alone do not fail the run, a failed one does.
func CheckError(results []executor.Result) error {
	for _, result := range results {
		if result.Status == executor.StatusFailed {
			return fmt.Errorf("node %q failed, see the report for more details", result.NodeName)
		}
	}

	return nil
}
