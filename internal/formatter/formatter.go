// package formatter renders session journal records in various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Render converts records into the named format.
func Render(records []*models.SessionRecord, format string) ([]byte, error) {
	switch format {
	case "", FormatText:
		return ExportToText(records)
	case FormatCSV:
		return ExportToCSV(records)
	case FormatMarkdown, "md":
		return ExportToMarkdown(records, "Session History")
	case FormatJSON:
		return json.MarshalIndent(records, "", "  ")
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts records to CSV with columns: Sequence, ID, Transport, Outcome, Emitted, Opened, Closed, Duration, Error
func ExportToCSV(records []*models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Transport", "Outcome", "Emitted", "Opened", "Closed", "Duration", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		record := []string{
			strconv.Itoa(rec.Sequence()),
			rec.ID(),
			rec.Transport(),
			rec.Outcome(),
			strconv.FormatInt(rec.Emitted(), 10),
			rec.OpenedAt().UTC().Format(time.RFC3339),
			rec.ClosedAt().UTC().Format(time.RFC3339),
			rec.Duration().String(),
			rec.Error(),
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

// ExportToMarkdown converts records to a Markdown table under the given heading
func ExportToMarkdown(records []*models.SessionRecord, title string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Sessions**: %d\n\n", len(records))

	if len(records) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Session | Transport | Outcome | Emitted | Duration |\n")
	buf.WriteString("|---|---------|-----------|---------|---------|----------|\n")
	for _, rec := range records {
		outcome := rec.Outcome()
		if rec.Error() != "" {
			outcome = fmt.Sprintf("%s (%s)", outcome, rec.Error())
		}
		fmt.Fprintf(&buf, "| %d | `%s` | %s | %s | %d | %s |\n",
			rec.Sequence(), rec.ID(), rec.Transport(), outcome, rec.Emitted(), rec.Duration().Truncate(time.Millisecond))
	}

	return buf.Bytes(), nil
}

// ExportToText converts records to plain text, one session per line
func ExportToText(records []*models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Sessions: %d\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&buf, "%d. %s [%s] %s after %d values in %s",
			rec.Sequence(), rec.ID(), rec.Transport(), rec.Outcome(), rec.Emitted(), rec.Duration().Truncate(time.Millisecond))
		if rec.Error() != "" {
			fmt.Fprintf(&buf, ": %s", rec.Error())
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// WriteExport renders records in format and writes them to path.
func WriteExport(records []*models.SessionRecord, format, path string) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}

	data, err := Render(records, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
