package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat selects the serialization used by Export
type ExportFormat string

const (
	FormatJSON   ExportFormat = "json"
	FormatNDJSON ExportFormat = "ndjson"
	FormatCSV    ExportFormat = "csv"
)

// ContentType returns the HTTP content type for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatNDJSON:
		return "application/x-ndjson"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// ParseExportFormat validates a format name; empty means JSON
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatNDJSON, FormatCSV:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Export serializes entries in the given format
func Export(entries []*Entry, format ExportFormat) ([]byte, error) {
	if entries == nil {
		entries = []*Entry{}
	}
	switch format {
	case FormatJSON, "":
		return exportJSON(entries)
	case FormatNDJSON:
		return exportNDJSON(entries)
	case FormatCSV:
		return exportCSV(entries)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// exportJSON exports entries as a JSON array
func exportJSON(entries []*Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

// exportNDJSON exports entries as newline-delimited JSON
func exportNDJSON(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return nil, fmt.Errorf("failed to encode entry: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports entries as CSV
func exportCSV(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Timestamp", "Actor", "Action", "Target", "Reason"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			entry.ID,
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
			entry.Actor,
			string(entry.Action),
			entry.Target,
			entry.Reason,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
