// package formatter renders project sections for the CLI as styled text, Markdown, or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/jellytodo/internal/models"
)

// Format names an output format accepted by the sections command.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// ParseFormat accepts "text", "markdown"/"md", or "csv".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Status describes a grouping's progress: "empty", "watching", or "done".
func Status(g models.Grouping) string {
	switch {
	case g.TaskCount == 0:
		return "empty"
	case g.CompletedTaskCount >= g.TaskCount:
		return "done"
	default:
		return "watching"
	}
}

// Render writes groupings in the requested format.
func Render(f Format, projectID string, groupings []models.Grouping) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return SectionsToMarkdown(projectID, groupings), nil
	case FormatCSV:
		return SectionsToCSV(groupings)
	default:
		return SectionsToText(projectID, groupings, DefaultPalette), nil
	}
}

// SectionsToCSV converts groupings to CSV with columns: Order, ID, Name, Tasks, Completed, Status
func SectionsToCSV(groupings []models.Grouping) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Order", "ID", "Name", "Tasks", "Completed", "Status"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, g := range groupings {
		record := []string{
			strconv.Itoa(g.Order),
			g.ID,
			g.Name,
			strconv.Itoa(g.TaskCount),
			strconv.Itoa(g.CompletedTaskCount),
			Status(g),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SectionsToMarkdown renders groupings as a Markdown table.
func SectionsToMarkdown(projectID string, groupings []models.Grouping) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Project %s\n\n", projectID)
	fmt.Fprintf(&buf, "**Sections**: %d\n\n", len(groupings))

	buf.WriteString("| # | Section | Tasks | Completed | Status |\n")
	buf.WriteString("|---|---------|-------|-----------|--------|\n")
	for _, g := range groupings {
		fmt.Fprintf(&buf, "| %d | %s | %d | %d | %s |\n",
			g.Order, strings.ReplaceAll(g.Name, "|", `\|`), g.TaskCount, g.CompletedTaskCount, Status(g))
	}

	return buf.Bytes()
}

// SectionsToText renders groupings as aligned, colored lines for a terminal.
func SectionsToText(projectID string, groupings []models.Grouping, p *Palette) []byte {
	var buf bytes.Buffer

	buf.WriteString(p.Title(fmt.Sprintf("Project %s (%d sections)", projectID, len(groupings))))
	buf.WriteString("\n")

	if len(groupings) == 0 {
		buf.WriteString(p.Help("no sections yet"))
		buf.WriteString("\n")
		return buf.Bytes()
	}

	width := 0
	for _, g := range groupings {
		width = max(width, len(g.Name))
	}

	for _, g := range groupings {
		progress := fmt.Sprintf("%d/%d", g.CompletedTaskCount, g.TaskCount)
		status := Status(g)
		switch status {
		case "done":
			status = p.OK(status)
		case "watching":
			status = p.Warn(status)
		default:
			status = p.Help(status)
		}
		fmt.Fprintf(&buf, "%3d  %-*s  %7s  %s\n", g.Order, width, g.Name, progress, status)
	}

	return buf.Bytes()
}
