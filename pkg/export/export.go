package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/wildguard/core/eventlog"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Write encodes recs to w in the named format.
func Write(w io.Writer, format string, recs []eventlog.Record) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes one record per line.
func WriteJSON(w io.Writer, recs []eventlog.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the records with a header row. The payload column holds
// the raw JSON payload.
func WriteCSV(w io.Writer, recs []eventlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"seq", "timestamp", "topic", "sender", "incident_id", "payload"}); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			strconv.FormatUint(r.Seq, 10),
			r.Timestamp.Format(time.RFC3339Nano),
			r.Topic,
			r.Sender,
			r.CorrelationID,
			string(r.Payload),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
