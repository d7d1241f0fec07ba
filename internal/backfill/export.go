package backfill

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/evermore-events/backend/pkg/storage"
)

var csvHeader = []string{"guest_id", "email", "invite_code", "retries", "status", "error"}

// CSV renders the report rows with a header line.
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range r.Rows {
		rec := []string{row.GuestID.String(), row.Email, row.InviteCode, strconv.Itoa(row.Retries), row.Status, row.Error}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the download name of the report.
func (r *Report) Filename() string {
	mode := "run"
	if r.DryRun {
		mode = "dry-run"
	}
	return "invite-code-backfill-" + mode + "-" + r.StartedAt.UTC().Format("20060102T150405Z") + ".csv"
}

// ExportKey is the object key the report is stored under.
func ExportKey(r *Report) string {
	name := r.Filename()
	return storage.ExportKey(r.WeddingID.String(), name[:len(name)-len(".csv")])
}
