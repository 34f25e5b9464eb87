package audit

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

const csvFlushEvery = 200

var csvHeader = []string{"id", "timestamp", "actor_id", "action", "resource_type", "resource_id", "museum_id", "previous_state", "new_state"}

// WriteCSV streams entries to w as CSV with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	buf := bufio.NewWriterSize(w, 32*1024)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for i, e := range entries {
		museum := ""
		if e.MuseumID > 0 {
			museum = strconv.FormatInt(e.MuseumID, 10)
		}
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(e.ActorID, 10),
			e.Action,
			e.ResourceType,
			strconv.FormatInt(e.ResourceID, 10),
			museum,
			e.PreviousState,
			e.NewState,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		if (i+1)%csvFlushEvery == 0 {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
