package exporter

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/gjson"

	"github.com/RowanDark/citadel/internal/hill"
)

func referenceReport(t *testing.T, withTrace bool) Request {
	t.Helper()
	engine := hill.DefaultEngine()
	key, err := engine.ParseKey("3 5 2 7")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	iv, err := engine.NewIV([]int{1, 21})
	if err != nil {
		t.Fatalf("new iv: %v", err)
	}
	res, err := engine.Encrypt(hill.ModeCitadel, "help", key, iv)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return Request{Report: NewReport("req-1", res, withTrace), Alphabet: engine.Alphabet()}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		raw  string
		want Format
		ok   bool
	}{
		{"json", FormatJSON, true},
		{" YAML ", FormatYAML, true},
		{"cbor", FormatCBOR, true},
		{"csv", FormatCSV, true},
		{"table", FormatTable, true},
		{"sarif", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.raw)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseFormat(%q) succeeded, want error", tc.raw)
		}
	}
}

func TestRegisterFormatRejectsDuplicatesAndMissingEncoder(t *testing.T) {
	if err := RegisterFormat(FormatSpec{Format: "JSON", Encode: encodeJSON}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := RegisterFormat(FormatSpec{Format: "noop"}); err == nil {
		t.Fatal("expected missing encoder to fail")
	}
	if len(Formats()) != 5 {
		t.Fatalf("expected 5 formats, got %d", len(Formats()))
	}
}

func TestNewReportOmitsTraceUnlessRequested(t *testing.T) {
	req := referenceReport(t, false)
	if req.Report.Trace != nil {
		t.Fatal("trace should be omitted")
	}
	if req.Report.Result != "GOXY" || req.Report.Padded != "HELP" {
		t.Fatalf("unexpected report: %+v", req.Report)
	}
	data, err := Encode(FormatJSON, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if gjson.GetBytes(data, "trace").Exists() {
		t.Fatalf("trace key present in %s", data)
	}
}

func TestEncodeJSON(t *testing.T) {
	data, err := Encode(FormatJSON, referenceReport(t, true))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	checks := map[string]string{
		"request_id":                "req-1",
		"mode":                      "citadel",
		"direction":                 "encrypt",
		"result":                    "GOXY",
		"trace.steps.#":             "2",
		"trace.steps.0.combined":    "[8,25]",
		"trace.steps.0.linear":      "[19,9]",
		"trace.steps.0.substituted": "[6,14]",
		"trace.iv":                  "[1,21]",
	}
	for path, want := range checks {
		if got := gjson.GetBytes(data, path+"|@ugly").Raw; strings.Trim(got, `"`) != want {
			t.Errorf("%s = %s, want %s", path, got, want)
		}
	}
}

func TestEncodeYAML(t *testing.T) {
	data, err := Encode(FormatYAML, referenceReport(t, true))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, want := range []string{"result: GOXY", "mode: citadel", "steps:"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("yaml output missing %q:\n%s", want, data)
		}
	}
}

func TestEncodeCBORIsDeterministic(t *testing.T) {
	req := referenceReport(t, true)
	first, err := Encode(FormatCBOR, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := Encode(FormatCBOR, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("cbor output differs between runs")
	}

	dec, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		t.Fatalf("dec mode: %v", err)
	}
	var got Report
	if err := dec.Unmarshal(first, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Result != "GOXY" || got.Trace == nil || len(got.Trace.Steps) != 2 {
		t.Fatalf("unexpected decoded report: %+v", got)
	}
}

func TestEncodeCSV(t *testing.T) {
	data, err := Encode(FormatCSV, referenceReport(t, true))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], csvHeader) {
		t.Fatalf("unexpected header %v", rows[0])
	}
	want := []string{"citadel", "encrypt", "1", "7 4", "1 21", "8 25", "19 9", "6 14", "6 14"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Fatalf("row 0 = %v, want %v", rows[1], want)
	}
}

func TestEncodeCSVWithoutTraceIsHeaderOnly(t *testing.T) {
	data, err := Encode(FormatCSV, referenceReport(t, false))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 1 {
		t.Fatalf("expected header only, got %d lines", lines)
	}
}

func TestEncodeTable(t *testing.T) {
	data, err := Encode(FormatTable, referenceReport(t, true))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := string(data)
	for _, want := range []string{"result:    GOXY", "key:       [3 5] [2 7]", "[7 4] HE", "[6 14] GO", "SUBSTITUTED"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := Encode("xml", Request{}); err == nil {
		t.Fatal("expected error for unregistered format")
	}
}
