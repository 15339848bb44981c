package exporter

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/RowanDark/citadel/internal/hill"
)

func encodeTable(req Request) ([]byte, error) {
	r := req.Report
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "mode:      %s\n", r.Mode)
	fmt.Fprintf(&buf, "direction: %s\n", r.Direction)
	fmt.Fprintf(&buf, "padded:    %s\n", r.Padded)
	fmt.Fprintf(&buf, "result:    %s\n", r.Result)
	if r.Trace == nil {
		return buf.Bytes(), nil
	}

	tr := r.Trace
	fmt.Fprintf(&buf, "key:       %s\n", formatRows(tr.Key))
	if tr.InverseKey != nil {
		fmt.Fprintf(&buf, "inverse:   %s\n", formatRows(tr.InverseKey))
	}
	if tr.IV != nil {
		fmt.Fprintf(&buf, "iv:        %s\n", cell(req.Alphabet, tr.IV))
	}
	buf.WriteString("\n")

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	if tr.Mode.Chained() {
		fmt.Fprintln(tw, "#\tINPUT\tPREV\tCOMBINED\tLINEAR\tSUBSTITUTED\tOUTPUT")
		for _, s := range tr.Steps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", s.Index,
				cell(req.Alphabet, s.Input), cell(req.Alphabet, s.Prev), cell(req.Alphabet, s.Combined),
				cell(req.Alphabet, s.Linear), cell(req.Alphabet, s.Substituted), cell(req.Alphabet, s.Output))
		}
	} else {
		fmt.Fprintln(tw, "#\tINPUT\tLINEAR\tOUTPUT")
		for _, s := range tr.Steps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Index,
				cell(req.Alphabet, s.Input), cell(req.Alphabet, s.Linear), cell(req.Alphabet, s.Output))
		}
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("flush table: %w", err)
	}
	return buf.Bytes(), nil
}

// cell renders a block as "[7 4] HE" when an alphabet is known.
func cell(a *hill.Alphabet, b hill.Block) string {
	if b == nil {
		return "-"
	}
	codes := "[" + hill.FormatInts(b) + "]"
	if a == nil {
		return codes
	}
	return codes + " " + a.Decode([]hill.Block{b})
}

func formatRows(rows [][]int) string {
	parts := make([]string, len(rows))
	for i, row := range rows {
		parts[i] = "[" + hill.FormatInts(row) + "]"
	}
	return strings.Join(parts, " ")
}
