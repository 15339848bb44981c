// Package exporter renders cipher results and their step traces in the
// formats offered by the CLI and the HTTP API.
package exporter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/RowanDark/citadel/internal/hill"
)

// Format identifies an export encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCBOR  Format = "cbor"
	FormatCSV   Format = "csv"
)

// Report is the document every format renders. Trace is nil when the
// caller did not ask for it.
type Report struct {
	RequestID string         `json:"request_id,omitempty" yaml:"request_id,omitempty" cbor:"request_id,omitempty"`
	Mode      hill.Mode      `json:"mode" yaml:"mode" cbor:"mode"`
	Direction hill.Direction `json:"direction" yaml:"direction" cbor:"direction"`
	Result    string         `json:"result" yaml:"result" cbor:"result"`
	Padded    string         `json:"padded" yaml:"padded" cbor:"padded"`
	Trace     *hill.Trace    `json:"trace,omitempty" yaml:"trace,omitempty" cbor:"trace,omitempty"`
}

// NewReport builds a report from a finished pass.
func NewReport(requestID string, res hill.Result, withTrace bool) Report {
	r := Report{
		RequestID: requestID,
		Mode:      res.Trace.Mode,
		Direction: res.Trace.Direction,
		Result:    res.Text,
		Padded:    res.Padded,
	}
	if withTrace {
		trace := res.Trace
		r.Trace = &trace
	}
	return r
}

// Request is the input to an encoder. Alphabet, when set, lets text formats
// print symbols next to codes.
type Request struct {
	Report   Report
	Alphabet *hill.Alphabet
}

// EncodeFunc renders a request.
type EncodeFunc func(Request) ([]byte, error)

// FormatSpec describes a registered encoder.
type FormatSpec struct {
	Format      Format
	Description string
	ContentType string
	Binary      bool
	Encode      EncodeFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[Format]FormatSpec{}
)

// RegisterFormat adds an encoder. Names are case-insensitive and unique.
func RegisterFormat(spec FormatSpec) error {
	name := Format(strings.ToLower(strings.TrimSpace(string(spec.Format))))
	if name == "" {
		return fmt.Errorf("exporter format name is required")
	}
	if spec.Encode == nil {
		return fmt.Errorf("exporter %q is missing an encoder", name)
	}
	if spec.ContentType == "" {
		spec.ContentType = "application/octet-stream"
	}
	spec.Format = name

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("export format %q already registered", name)
	}
	registry[name] = spec
	return nil
}

// MustRegisterFormat is RegisterFormat that panics on error.
func MustRegisterFormat(spec FormatSpec) {
	if err := RegisterFormat(spec); err != nil {
		panic(err)
	}
}

// ParseFormat validates raw against the registry.
func ParseFormat(raw string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(raw)))

	registryMu.RLock()
	defer registryMu.RUnlock()
	if _, exists := registry[format]; exists && format != "" {
		return format, nil
	}
	names := make([]string, 0, len(registry))
	for key := range registry {
		names = append(names, string(key))
	}
	sort.Strings(names)
	return "", fmt.Errorf("unsupported format %q (available: %s)", raw, strings.Join(names, ", "))
}

// Lookup returns the spec registered for format.
func Lookup(format Format) (FormatSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[format]
	return spec, ok
}

// Encode renders req with the encoder registered for format.
func Encode(format Format, req Request) ([]byte, error) {
	spec, ok := Lookup(format)
	if !ok {
		return nil, fmt.Errorf("unregistered export format: %s", format)
	}
	return spec.Encode(req)
}

// Formats returns the registered encoders sorted by name.
func Formats() []FormatSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	specs := make([]FormatSpec, 0, len(registry))
	for _, spec := range registry {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Format < specs[j].Format
	})
	return specs
}

func init() {
	MustRegisterFormat(FormatSpec{Format: FormatTable, Description: "aligned text, one row per block", ContentType: "text/plain; charset=utf-8", Encode: encodeTable})
	MustRegisterFormat(FormatSpec{Format: FormatJSON, Description: "indented JSON document", ContentType: "application/json", Encode: encodeJSON})
	MustRegisterFormat(FormatSpec{Format: FormatYAML, Description: "YAML document", ContentType: "application/yaml", Encode: encodeYAML})
	MustRegisterFormat(FormatSpec{Format: FormatCBOR, Description: "deterministic CBOR (RFC 8949 core encoding)", ContentType: "application/cbor", Binary: true, Encode: encodeCBOR})
	MustRegisterFormat(FormatSpec{Format: FormatCSV, Description: "one CSV row per trace step", ContentType: "text/csv", Encode: encodeCSV})
}
