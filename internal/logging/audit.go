// Package logging writes the JSON audit trail of cipher activity.
package logging

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventEncrypt         EventType = "cipher_encrypt"
	EventDecrypt         EventType = "cipher_decrypt"
	EventKeyRejected     EventType = "key_rejected"
	EventInputRejected   EventType = "input_rejected"
	EventKeyGenerated    EventType = "key_generated"
	EventPipelineRun     EventType = "pipeline_run"
	EventRecipeSaved     EventType = "recipe_saved"
	EventRecipeDeleted   EventType = "recipe_deleted"
	EventAuthDenied      EventType = "auth_denied"
	EventServerLifecycle EventType = "server_lifecycle"
)

type Decision string

const (
	DecisionInfo  Decision = "info"
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// AuditEvent is one line of the audit log. Metadata values under key
// material or text keys never reach the writer.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Component string         `json:"component"`
	PassID    string         `json:"pass_id,omitempty"`
	EventType EventType      `json:"event_type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Decision  Decision       `json:"decision,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// NewPassID returns a sortable identifier for one cipher pass.
func NewPassID() string {
	return ulid.Make().String()
}

type Option func(*config) error

type config struct {
	writers          []io.Writer
	closers          []io.Closer
	useDefaultWriter bool
}

func defaultConfig() *config {
	return &config{writers: []io.Writer{os.Stdout}, useDefaultWriter: true}
}

// WithWriter adds w as an additional sink.
func WithWriter(w io.Writer) Option {
	return func(cfg *config) error {
		if w == nil {
			return errors.New("writer cannot be nil")
		}
		cfg.writers = append(cfg.writers, w)
		return nil
	}
}

// WithFile appends events to path, creating it with 0600 permissions.
func WithFile(path string) Option {
	return func(cfg *config) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("file path cannot be empty")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		cfg.writers = append(cfg.writers, f)
		cfg.closers = append(cfg.closers, f)
		return nil
	}
}

// WithoutStdout drops the default stdout sink.
func WithoutStdout() Option {
	return func(cfg *config) error {
		cfg.useDefaultWriter = false
		filtered := cfg.writers[:0]
		for _, w := range cfg.writers {
			if w != os.Stdout {
				filtered = append(filtered, w)
			}
		}
		cfg.writers = filtered
		return nil
	}
}

type auditCore struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closers []io.Closer
}

// AuditLogger serialises events as JSON lines. Loggers derived with
// WithComponent share the parent's sinks.
type AuditLogger struct {
	component   string
	core        *auditCore
	ownsClosers bool
	now         func() time.Time
}

func NewAuditLogger(component string, opts ...Option) (*AuditLogger, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			for _, closer := range cfg.closers {
				_ = closer.Close()
			}
			return nil, err
		}
	}
	if len(cfg.writers) == 0 {
		return nil, errors.New("no writers configured for audit logger")
	}
	enc := json.NewEncoder(io.MultiWriter(cfg.writers...))
	enc.SetEscapeHTML(false)
	return &AuditLogger{
		component:   component,
		core:        &auditCore{encoder: enc, closers: cfg.closers},
		ownsClosers: true,
		now:         time.Now,
	}, nil
}

// NewDiscardLogger returns a logger that drops every event.
func NewDiscardLogger() *AuditLogger {
	logger, _ := NewAuditLogger("discard", WithoutStdout(), WithWriter(io.Discard))
	return logger
}

func (l *AuditLogger) Close() error {
	if l == nil || !l.ownsClosers || l.core == nil {
		return nil
	}
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	var firstErr error
	for _, closer := range l.core.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.core.closers = nil
	return firstErr
}

// Emit redacts and writes event, filling in the timestamp and component.
func (l *AuditLogger) Emit(event AuditEvent) error {
	if l == nil || l.core == nil {
		return errors.New("nil audit logger")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.Timestamp = event.Timestamp.UTC()
	if event.Component == "" {
		event.Component = l.component
	}
	event.Reason = RedactString(event.Reason)
	event.Metadata = RedactMetadata(event.Metadata)

	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	return l.core.encoder.Encode(event)
}

func (l *AuditLogger) WithComponent(component string) *AuditLogger {
	if l == nil || l.core == nil {
		return nil
	}
	return &AuditLogger{component: component, core: l.core, now: l.now}
}
