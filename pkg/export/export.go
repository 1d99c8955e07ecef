// Package export writes command journal records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/rainbarrel/core/command/journal"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Write encodes records in the named format.
func Write(w io.Writer, format string, records []journal.Record) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []journal.Record) error {
	if records == nil {
		records = []journal.Record{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes one row per command entry. A record that could not be
// decoded yields a single row carrying its error.
func WriteCSV(w io.Writer, records []journal.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "timestamp", "topic", "command", "arg", "outcome", "error"}); err != nil {
		return err
	}
	for _, r := range records {
		ts := r.Timestamp.UTC().Format(time.RFC3339Nano)
		if len(r.Entries) == 0 {
			if err := cw.Write([]string{r.ID, ts, r.Topic, "", "", "", r.Error}); err != nil {
				return err
			}
			continue
		}
		for _, e := range r.Entries {
			if err := cw.Write([]string{r.ID, ts, r.Topic, e.Name, e.Arg, e.Outcome, e.Error}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
