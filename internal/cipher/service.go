package cipher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RowanDark/citadel/internal/hill"
	"github.com/RowanDark/citadel/internal/logging"
	"github.com/RowanDark/citadel/internal/observability/metrics"
	"github.com/RowanDark/citadel/internal/observability/tracing"
)

// PassRequest describes one encryption or decryption pass in the textual
// form accepted by the outer surfaces.
type PassRequest struct {
	Mode      string
	Direction hill.Direction
	Text      string
	Key       string
	IV        string
	// Workers overrides the service default for hill passes. Zero keeps the default.
	Workers int
}

// Pass is the outcome of Service.Run.
type Pass struct {
	ID     string
	Result hill.Result
}

// KeyMaterial is a freshly generated invertible key and IV.
type KeyMaterial struct {
	Key hill.Matrix
	IV  hill.Block
}

// MaxKeySize is the largest block size GenerateKey accepts.
const MaxKeySize = 8

// ErrInvalidKeySize reports a key generation size outside 0..MaxKeySize.
var ErrInvalidKeySize = errors.New("size must be 0 (configured) or 1..8")

// CheckKeySize validates a requested key generation size. Zero selects the
// configured block size.
func CheckKeySize(size int) error {
	if size < 0 || size > MaxKeySize {
		return fmt.Errorf("%w, got %d", ErrInvalidKeySize, size)
	}
	return nil
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithAudit routes pass events to logger.
func WithAudit(logger *logging.AuditLogger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithWorkers sets the default goroutine count for hill passes. Values <= 1
// keep the sequential path.
func WithWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

// WithRecipes attaches a recipe store.
func WithRecipes(rm *RecipeManager) ServiceOption {
	return func(s *Service) { s.recipes = rm }
}

// Service ties the engine, the operation registry and the recipe store to
// auditing, metrics and tracing. It is safe for concurrent use.
type Service struct {
	engine   *hill.Engine
	registry *Registry
	recipes  *RecipeManager
	audit    *logging.AuditLogger
	workers  int
}

// NewService builds a service around engine with the default registry.
func NewService(engine *hill.Engine, opts ...ServiceOption) (*Service, error) {
	if engine == nil {
		return nil, errors.New("cipher engine is required")
	}
	reg, err := NewDefaultRegistry(engine)
	if err != nil {
		return nil, err
	}
	s := &Service{
		engine:   engine,
		registry: reg,
		audit:    logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Engine() *hill.Engine        { return s.engine }
func (s *Service) Registry() *Registry         { return s.registry }
func (s *Service) Recipes() *RecipeManager     { return s.recipes }
func (s *Service) Audit() *logging.AuditLogger { return s.audit }

// Run parses the request and executes the pass. Decrypting text that is
// empty after sanitization fails with hill.ErrEmptyInput; encrypting it
// yields an empty result.
func (s *Service) Run(ctx context.Context, req PassRequest) (Pass, error) {
	passID := logging.NewPassID()
	mode, err := hill.ParseMode(req.Mode)
	if err != nil {
		s.reject(passID, logging.EventInputRejected, req, err)
		return Pass{}, err
	}
	if req.Direction != hill.DirectionEncrypt && req.Direction != hill.DirectionDecrypt {
		err := fmt.Errorf("unknown direction %q", req.Direction)
		s.reject(passID, logging.EventInputRejected, req, err)
		return Pass{}, err
	}
	if req.Direction == hill.DirectionDecrypt && s.engine.Alphabet().Sanitize(req.Text) == "" {
		s.reject(passID, logging.EventInputRejected, req, hill.ErrEmptyInput)
		return Pass{}, hill.ErrEmptyInput
	}

	key, err := s.engine.ParseKey(req.Key)
	if err != nil {
		s.reject(passID, logging.EventKeyRejected, req, err)
		return Pass{}, err
	}
	var iv hill.Block
	if mode.Chained() {
		if iv, err = s.engine.ParseIV(req.IV); err != nil {
			s.reject(passID, logging.EventInputRejected, req, err)
			return Pass{}, err
		}
	}

	ctx, span := tracing.StartSpan(ctx, "cipher."+string(mode)+"."+string(req.Direction), tracing.WithAttributes(map[string]any{
		"citadel.pass_id":    passID,
		"citadel.block_size": s.engine.BlockSize(),
	}))
	defer span.End()

	start := time.Now()
	res, err := s.execute(ctx, mode, req, key, iv)
	metrics.ObservePass(ctx, string(mode), string(req.Direction), len(res.Blocks), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		event := logging.EventInputRejected
		if errors.Is(err, hill.ErrKeyNotInvertible) {
			event = logging.EventKeyRejected
		}
		s.reject(passID, event, req, err)
		return Pass{}, err
	}
	span.SetAttribute("citadel.blocks", len(res.Blocks))

	_ = s.audit.Emit(logging.AuditEvent{
		PassID:    passID,
		EventType: directionEvent(req.Direction),
		Decision:  logging.DecisionAllow,
		Metadata: map[string]any{
			"mode":   string(mode),
			"blocks": len(res.Blocks),
			"key":    req.Key,
			"text":   req.Text,
		},
	})
	return Pass{ID: passID, Result: res}, nil
}

func (s *Service) execute(ctx context.Context, mode hill.Mode, req PassRequest, key hill.Matrix, iv hill.Block) (hill.Result, error) {
	workers := s.workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	if mode == hill.ModeHill && workers > 1 {
		alphabet := s.engine.Alphabet()
		blocks, padded := alphabet.Encode(req.Text, s.engine.BlockSize())
		var (
			out   []hill.Block
			trace hill.Trace
			err   error
		)
		if req.Direction == hill.DirectionEncrypt {
			out, trace, err = s.engine.EncryptECBParallel(ctx, key, blocks, workers)
		} else {
			out, trace, err = s.engine.DecryptECBParallel(ctx, key, blocks, workers)
		}
		if err != nil {
			return hill.Result{}, err
		}
		return hill.Result{Text: alphabet.Decode(out), Padded: padded, Blocks: out, Trace: trace}, nil
	}
	if req.Direction == hill.DirectionEncrypt {
		return s.engine.Encrypt(mode, req.Text, key, iv)
	}
	return s.engine.Decrypt(mode, req.Text, key, iv)
}

func (s *Service) reject(passID string, event logging.EventType, req PassRequest, err error) {
	_ = s.audit.Emit(logging.AuditEvent{
		PassID:    passID,
		EventType: event,
		Decision:  logging.DecisionDeny,
		Reason:    err.Error(),
		Metadata: map[string]any{
			"mode":      req.Mode,
			"direction": string(req.Direction),
		},
	})
}

func directionEvent(d hill.Direction) logging.EventType {
	if d == hill.DirectionDecrypt {
		return logging.EventDecrypt
	}
	return logging.EventEncrypt
}

// GenerateKey draws a random invertible key and an IV. size 0 uses the
// engine's block size.
func (s *Service) GenerateKey(ctx context.Context, size int) (KeyMaterial, error) {
	if err := CheckKeySize(size); err != nil {
		return KeyMaterial{}, err
	}
	engine := s.engine
	if size != 0 && size != engine.BlockSize() {
		var err error
		engine, err = hill.NewEngine(s.engine.Alphabet(), size, s.engine.Substitution())
		if err != nil {
			return KeyMaterial{}, err
		}
	}
	_, span := tracing.StartSpan(ctx, "cipher.keygen")
	defer span.End()

	key, err := engine.GenerateKey(nil)
	if err != nil {
		span.RecordError(err)
		return KeyMaterial{}, err
	}
	iv, err := engine.GenerateIV(nil)
	if err != nil {
		span.RecordError(err)
		return KeyMaterial{}, err
	}
	_ = s.audit.Emit(logging.AuditEvent{
		EventType: logging.EventKeyGenerated,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"size": key.Size()},
	})
	return KeyMaterial{Key: key, IV: iv}, nil
}

// RunPipeline executes the operations in order against input.
func (s *Service) RunPipeline(ctx context.Context, ops []OperationConfig, input []byte) ([]byte, error) {
	if len(ops) == 0 {
		return nil, errors.New("pipeline has no operations")
	}
	ctx, span := tracing.StartSpan(ctx, "cipher.pipeline", tracing.WithAttributes(map[string]any{
		"citadel.stages": len(ops),
	}))
	defer span.End()

	p := &Pipeline{Operations: ops}
	out, err := p.Execute(ctx, s.registry, input)
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	event := logging.AuditEvent{
		EventType: logging.EventPipelineRun,
		Decision:  logging.DecisionAllow,
		Metadata:  map[string]any{"operations": strings.Join(names, ",")},
	}
	if err != nil {
		span.RecordError(err)
		event.Decision = logging.DecisionDeny
		event.Reason = err.Error()
	}
	_ = s.audit.Emit(event)
	return out, err
}

// SaveRecipe stores recipe and records the change.
func (s *Service) SaveRecipe(recipe *Recipe) error {
	if s.recipes == nil {
		return errors.New("recipe store not configured")
	}
	for _, op := range recipe.Pipeline.Operations {
		if _, ok := s.registry.Get(op.Name); !ok {
			return fmt.Errorf("unknown operation %q", op.Name)
		}
	}
	if err := s.recipes.SaveRecipe(recipe); err != nil {
		return err
	}
	metrics.RecordRecipeEvent("save")
	_ = s.audit.Emit(logging.AuditEvent{
		EventType: logging.EventRecipeSaved,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"recipe": recipe.Name, "id": recipe.ID},
	})
	return nil
}

// DeleteRecipe removes a recipe by name.
func (s *Service) DeleteRecipe(name string) error {
	if s.recipes == nil {
		return errors.New("recipe store not configured")
	}
	if err := s.recipes.DeleteRecipe(name); err != nil {
		return err
	}
	metrics.RecordRecipeEvent("delete")
	_ = s.audit.Emit(logging.AuditEvent{
		EventType: logging.EventRecipeDeleted,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"recipe": name},
	})
	return nil
}

// RunRecipe executes a stored recipe's pipeline.
func (s *Service) RunRecipe(ctx context.Context, name string, input []byte) ([]byte, error) {
	if s.recipes == nil {
		return nil, errors.New("recipe store not configured")
	}
	recipe, ok := s.recipes.GetRecipe(name)
	if !ok {
		return nil, fmt.Errorf("recipe not found: %s", name)
	}
	metrics.RecordRecipeEvent("run")
	return s.RunPipeline(ctx, recipe.Pipeline.Operations, input)
}
