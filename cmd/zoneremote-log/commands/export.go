package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/zoneremote/zoneremote-go/pkg/log"
)

// csvHeader lists one column per field of the remote's protocol traffic.
var csvHeader = []string{
	"timestamp", "connection_id", "core_id", "direction", "layer", "type",
	"message_id", "operation", "zone", "command", "item_key", "status", "action", "rtt_us",
}

// RunExport writes the events of path selected by c to output (stdout when
// empty) as JSON lines or CSV.
func RunExport(path, format, output string, c Criteria) error {
	var write func(io.Writer, *log.Reader) error
	switch format {
	case "jsonl":
		write = exportJSONL
	case "csv":
		write = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	r, err := openReader(path, c)
	if err != nil {
		return err
	}
	defer r.Close()

	if output == "" {
		return write(os.Stdout, r)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportJSONL(w io.Writer, r *log.Reader) error {
	enc := json.NewEncoder(w)
	for event, err := range r.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(w io.Writer, r *log.Reader) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for event, err := range r.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(event log.Event) []string {
	row := make([]string, len(csvHeader))
	row[0] = event.Timestamp.UTC().Format(timeLayout)
	row[1] = event.ConnectionID
	row[2] = event.CoreID
	row[3] = event.Direction.String()
	row[4] = event.Layer.String()
	row[5] = eventLabel(event)

	m := event.Message
	if m == nil {
		return row
	}
	if m.Type != log.MessageTypeEvent {
		row[6] = strconv.FormatUint(uint64(m.MessageID), 10)
	}
	if m.Operation != nil {
		row[7] = m.Operation.String()
	}
	row[8] = m.Target
	row[9] = m.Command
	row[10] = m.ItemKey
	if m.Status != nil {
		row[11] = m.Status.String()
	}
	row[12] = m.Action
	if m.ProcessingTime != nil {
		row[13] = strconv.FormatInt(m.ProcessingTime.Microseconds(), 10)
	}
	return row
}
