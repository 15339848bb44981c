package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/RowanDark/citadel/internal/hill"
)

var csvHeader = []string{
	"mode",
	"direction",
	"block",
	"input",
	"prev",
	"combined",
	"linear",
	"substituted",
	"output",
}

// encodeCSV writes one row per step. A report without a trace yields only
// the header.
func encodeCSV(req Request) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if tr := req.Report.Trace; tr != nil {
		for _, step := range tr.Steps {
			row := []string{
				string(tr.Mode),
				string(tr.Direction),
				strconv.Itoa(step.Index),
				hill.FormatInts(step.Input),
				hill.FormatInts(step.Prev),
				hill.FormatInts(step.Combined),
				hill.FormatInts(step.Linear),
				hill.FormatInts(step.Substituted),
				hill.FormatInts(step.Output),
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write step %d: %w", step.Index, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
