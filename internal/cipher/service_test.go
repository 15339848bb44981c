package cipher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/RowanDark/citadel/internal/hill"
	"github.com/RowanDark/citadel/internal/logging"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	audit, err := logging.NewAuditLogger("cipher-test", logging.WithoutStdout(), logging.WithWriter(&buf))
	if err != nil {
		t.Fatalf("audit logger: %v", err)
	}
	t.Cleanup(func() { _ = audit.Close() })
	opts = append([]ServiceOption{WithAudit(audit), WithRecipes(NewRecipeManager(""))}, opts...)
	svc, err := NewService(hill.DefaultEngine(), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, &buf
}

func auditLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestServiceRunReferenceScenario(t *testing.T) {
	svc, buf := newTestService(t)
	cases := []struct {
		mode string
		want string
	}{
		{"hill", "PQEX"},
		{"citadel", "GOXY"},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			pass, err := svc.Run(context.Background(), PassRequest{
				Mode: tc.mode, Direction: hill.DirectionEncrypt, Text: "help", Key: "3 5 2 7", IV: "1 21",
			})
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			if pass.Result.Text != tc.want {
				t.Fatalf("got %q, want %q", pass.Result.Text, tc.want)
			}
			if pass.ID == "" {
				t.Fatal("expected pass id")
			}
			back, err := svc.Run(context.Background(), PassRequest{
				Mode: tc.mode, Direction: hill.DirectionDecrypt, Text: pass.Result.Text, Key: "3 5 2 7", IV: "1 21",
			})
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if back.Result.Text != "HELP" {
				t.Fatalf("round trip got %q", back.Result.Text)
			}
		})
	}

	lines := auditLines(buf)
	if len(lines) != 4 {
		t.Fatalf("expected 4 audit events, got %d", len(lines))
	}
	first := lines[0]
	if got := gjson.Get(first, "event_type").String(); got != string(logging.EventEncrypt) {
		t.Fatalf("event_type = %q", got)
	}
	if got := gjson.Get(first, "metadata.key").String(); got != "[REDACTED]" {
		t.Fatalf("key leaked into audit log: %q", got)
	}
	if got := gjson.Get(lines[1], "event_type").String(); got != string(logging.EventDecrypt) {
		t.Fatalf("event_type = %q", got)
	}
}

func TestServiceRunErrors(t *testing.T) {
	svc, buf := newTestService(t)
	cases := []struct {
		name  string
		req   PassRequest
		want  error
		event logging.EventType
	}{
		{"empty decrypt", PassRequest{Mode: "hill", Direction: hill.DirectionDecrypt, Text: " 12 ", Key: "3 5 2 7"}, hill.ErrEmptyInput, logging.EventInputRejected},
		{"bad key", PassRequest{Mode: "hill", Direction: hill.DirectionEncrypt, Text: "help", Key: "3 5 2"}, hill.ErrInvalidKeyFormat, logging.EventKeyRejected},
		{"bad iv", PassRequest{Mode: "citadel", Direction: hill.DirectionEncrypt, Text: "help", Key: "3 5 2 7", IV: "1"}, hill.ErrInvalidIVFormat, logging.EventInputRejected},
		{"singular", PassRequest{Mode: "citadel", Direction: hill.DirectionDecrypt, Text: "GOXY", Key: "2 4 6 8", IV: "1 21"}, hill.ErrKeyNotInvertible, logging.EventKeyRejected},
		{"unknown mode", PassRequest{Mode: "vigenere", Direction: hill.DirectionEncrypt, Text: "help", Key: "3 5 2 7"}, hill.ErrUnknownMode, logging.EventInputRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			pass, err := svc.Run(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if pass.Result.Text != "" || len(pass.Result.Trace.Steps) != 0 {
				t.Fatalf("failed pass returned output: %+v", pass)
			}
			line := strings.TrimSpace(buf.String())
			if got := gjson.Get(line, "event_type").String(); got != string(tc.event) {
				t.Fatalf("event_type = %q, want %q", got, tc.event)
			}
			if got := gjson.Get(line, "decision").String(); got != string(logging.DecisionDeny) {
				t.Fatalf("decision = %q", got)
			}
		})
	}
}

func TestServiceEncryptEmptyTextYieldsEmptyResult(t *testing.T) {
	svc, _ := newTestService(t)
	pass, err := svc.Run(context.Background(), PassRequest{Mode: "citadel", Direction: hill.DirectionEncrypt, Text: "123", Key: "3 5 2 7", IV: "1 21"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if pass.Result.Text != "" || len(pass.Result.Trace.Steps) != 0 {
		t.Fatalf("expected empty result, got %+v", pass.Result)
	}
}

func TestServiceParallelWorkersMatchSequential(t *testing.T) {
	seq, _ := newTestService(t)
	par, _ := newTestService(t, WithWorkers(4))
	text := strings.Repeat("ATTACKATDAWN", 20)
	req := PassRequest{Mode: "hill", Direction: hill.DirectionEncrypt, Text: text, Key: "5 8 17 3"}

	a, err := seq.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	b, err := par.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if a.Result.Text != b.Result.Text || a.Result.Padded != b.Result.Padded {
		t.Fatalf("parallel result differs")
	}
	if len(b.Result.Trace.Steps) != len(a.Result.Trace.Steps) {
		t.Fatalf("trace lengths differ: %d vs %d", len(b.Result.Trace.Steps), len(a.Result.Trace.Steps))
	}
}

func TestServiceGenerateKey(t *testing.T) {
	svc, buf := newTestService(t)
	for _, size := range []int{0, 2, 3} {
		km, err := svc.GenerateKey(context.Background(), size)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		want := size
		if want == 0 {
			want = 2
		}
		if km.Key.Size() != want || len(km.IV) != want {
			t.Fatalf("size %d: got key %d iv %d", size, km.Key.Size(), len(km.IV))
		}
		if !km.Key.Invertible() {
			t.Fatalf("size %d: generated key not invertible", size)
		}
	}
	for _, size := range []int{-1, MaxKeySize + 1} {
		if _, err := svc.GenerateKey(context.Background(), size); !errors.Is(err, ErrInvalidKeySize) {
			t.Fatalf("size %d: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
	if got := gjson.Get(auditLines(buf)[0], "event_type").String(); got != string(logging.EventKeyGenerated) {
		t.Fatalf("event_type = %q", got)
	}
}

func TestServicePipelineAndRecipes(t *testing.T) {
	svc, _ := newTestService(t)
	ops := []OperationConfig{
		{Name: OpAlphabetNormalize},
		{Name: OpCitadelEncrypt, Parameters: map[string]interface{}{"key": "3 5 2 7", "iv": "1 21"}},
	}
	out, err := svc.RunPipeline(context.Background(), ops, []byte("h e l p"))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if string(out) != "GOXY" {
		t.Fatalf("pipeline output %q", out)
	}
	if _, err := svc.RunPipeline(context.Background(), nil, []byte("x")); err == nil {
		t.Fatal("expected empty pipeline error")
	}

	if err := svc.SaveRecipe(&Recipe{Name: "bad", Pipeline: Pipeline{Operations: []OperationConfig{{Name: "rot13"}}}}); err == nil {
		t.Fatal("expected unknown operation error")
	}
	if err := svc.SaveRecipe(&Recipe{Name: "seal", Pipeline: Pipeline{Operations: ops}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err = svc.RunRecipe(context.Background(), "seal", []byte("help"))
	if err != nil {
		t.Fatalf("run recipe: %v", err)
	}
	if string(out) != "GOXY" {
		t.Fatalf("recipe output %q", out)
	}
	if err := svc.DeleteRecipe("seal"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.RunRecipe(context.Background(), "seal", []byte("help")); err == nil {
		t.Fatal("expected missing recipe error")
	}
}
