package controller

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"

	m "gooze.dev/pkg/grafter/internal/model"
)

const (
	shortIDLength = 8
	timeLayout    = "2006-01-02 15:04:05"
)

func renderSummaryTable(summary m.Summary) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Program", "Solved", "First gen", "Min gen", "RPS"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})

	for _, r := range summary.Results {
		if !r.Solved {
			table.Append([]string{r.InstanceID, "no", "-", "-", "-"})
			continue
		}

		table.Append([]string{
			r.InstanceID,
			"yes",
			strconv.Itoa(r.FirstGeneration),
			strconv.Itoa(r.MinGeneration),
			fmt.Sprintf("%.3f", r.RPS),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total %d", summary.Total),
		fmt.Sprintf("%d", summary.Solved),
		"",
		"",
		fmt.Sprintf("%.3f", summary.AverageRPS),
	})

	table.Render()

	return tableBuffer.String()
}

func renderRunsTable(runs []m.Run) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Run", "Problem", "Started", "Status", "Seed", "Generations", "Population", "Formula"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, run := range runs {
		table.Append([]string{
			run.ID,
			string(run.Problem),
			run.StartedAt.Local().Format(timeLayout),
			string(run.Status),
			strconv.FormatUint(run.Seed, 10),
			strconv.Itoa(run.Generations),
			strconv.Itoa(run.Population),
			run.Formula,
		})
	}

	table.Render()

	return tableBuffer.String()
}

func summaryLine(summary m.Summary) string {
	return fmt.Sprintf("Repair rate: %.2f%% (%d/%d)  Average RPS: %.3f",
		summary.RepairRate*100, summary.Solved, summary.Total, summary.AverageRPS)
}

// patchDiff renders the minimal patch of r as a unified diff against the
// buggy program.
func patchDiff(r m.Result) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(r.Buggy),
		B:        difflib.SplitLines(r.MinPatch),
		FromFile: r.InstanceID + " (buggy)",
		ToFile:   fmt.Sprintf("%s (generation %d)", r.InstanceID, r.MinGeneration),
		Context:  2,
	})
	if err != nil {
		return ""
	}

	return diff
}

// suspect names the most suspicious line of a step, if any.
func suspect(step m.Step) string {
	if len(step.Suspicious) == 0 {
		return ""
	}

	return fmt.Sprintf(" suspect line %d", step.Suspicious[0])
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}

	return id[:shortIDLength]
}
