package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/RowanDark/citadel/internal/cipher"
	"github.com/RowanDark/citadel/internal/exporter"
	"github.com/RowanDark/citadel/internal/hill"
	"github.com/RowanDark/citadel/internal/observability/tracing"
)

// PassRequest is the body of /api/v1/encrypt and /api/v1/decrypt.
type PassRequest struct {
	Mode string `json:"mode"`
	Text string `json:"text"`
	Key  string `json:"key"`
	IV   string `json:"iv,omitempty"`
}

// KeyRequest is the body of /api/v1/keys.
type KeyRequest struct {
	Size int `json:"size,omitempty"`
}

// KeyResponse carries generated key material in the textual form the
// encrypt endpoints accept.
type KeyResponse struct {
	Size int    `json:"size"`
	Key  string `json:"key"`
	IV   string `json:"iv"`
}

// OperationInfo describes a registered operation.
type OperationInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Reverse     string `json:"reverse,omitempty"`
}

// PipelineRequest runs operations in order against Input.
type PipelineRequest struct {
	Input      string                   `json:"input"`
	Operations []cipher.OperationConfig `json:"operations"`
}

// PipelineResponse is the result of a pipeline or recipe run.
type PipelineResponse struct {
	Output string `json:"output"`
}

// RecipeSaveRequest represents a request to save a recipe
type RecipeSaveRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Tags        []string                 `json:"tags,omitempty"`
	Operations  []cipher.OperationConfig `json:"operations"`
}

// RecipeRunRequest runs a stored recipe.
type RecipeRunRequest struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

// RecipeListResponse represents the list of recipes
type RecipeListResponse struct {
	Recipes []*cipher.Recipe `json:"recipes"`
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	s.handlePass(w, r, hill.DirectionEncrypt)
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	s.handlePass(w, r, hill.DirectionDecrypt)
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request, dir hill.Direction) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	format := exporter.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := exporter.ParseFormat(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "UnknownFormat", err.Error())
			return
		}
		format = f
	}

	var req PassRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	pass, err := s.svc.Run(r.Context(), cipher.PassRequest{
		Mode:      req.Mode,
		Direction: dir,
		Text:      req.Text,
		Key:       req.Key,
		IV:        req.IV,
	})
	if err != nil {
		s.writeCipherError(w, r, err)
		return
	}

	report := exporter.NewReport(RequestIDFromContext(r.Context()), pass.Result, true)
	spec, _ := exporter.Lookup(format)
	body, err := spec.Encode(exporter.Request{Report: report, Alphabet: s.svc.Engine().Alphabet()})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Internal", err.Error())
		return
	}
	w.Header().Set("Content-Type", spec.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeCipherError maps cipher sentinels onto HTTP statuses and tags the
// request span with the error code.
func (s *Server) writeCipherError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusBadRequest, "BadRequest"
	switch {
	case errors.Is(err, hill.ErrKeyNotInvertible):
		status, code = http.StatusUnprocessableEntity, "KeyNotInvertible"
	case errors.Is(err, hill.ErrInvalidKeyFormat):
		code = "InvalidKeyFormat"
	case errors.Is(err, hill.ErrInvalidIVFormat):
		code = "InvalidIVFormat"
	case errors.Is(err, hill.ErrEmptyInput):
		code = "EmptyInput"
	case errors.Is(err, hill.ErrUnknownMode):
		code = "UnknownMode"
	}
	span := tracing.SpanFromContext(r.Context())
	span.SetAttribute("citadel.error_code", code)
	span.RecordError(err)
	s.writeError(w, status, code, err.Error())
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req KeyRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}
	if err := cipher.CheckKeySize(req.Size); err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidSize", err.Error())
		return
	}
	km, err := s.svc.GenerateKey(r.Context(), req.Size)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Internal", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, KeyResponse{
		Size: km.Key.Size(),
		Key:  hill.FormatInts(km.Key.Flat()),
		IV:   hill.FormatInts(km.IV),
	})
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	var ops []cipher.Operation
	if t := strings.TrimSpace(r.URL.Query().Get("type")); t != "" {
		ops = s.svc.Registry().ListByType(cipher.OperationType(t))
	} else {
		ops = s.svc.Registry().List()
	}
	infos := make([]OperationInfo, 0, len(ops))
	for _, op := range ops {
		info := OperationInfo{Name: op.Name(), Type: string(op.Type()), Description: op.Description()}
		if rev, ok := op.Reverse(); ok {
			info.Reverse = rev
		}
		infos = append(infos, info)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"operations": infos})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req PipelineRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	out, err := s.svc.RunPipeline(r.Context(), req.Operations, []byte(req.Input))
	if err != nil {
		s.writeCipherError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PipelineResponse{Output: string(out)})
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	if s.svc.Recipes() == nil {
		s.writeError(w, http.StatusNotFound, "NotFound", "recipe store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		var recipes []*cipher.Recipe
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			recipes = s.svc.Recipes().SearchRecipes(q)
		} else {
			recipes = s.svc.Recipes().ListRecipes()
		}
		if recipes == nil {
			recipes = []*cipher.Recipe{}
		}
		s.writeJSON(w, http.StatusOK, RecipeListResponse{Recipes: recipes})
	case http.MethodPost:
		var req RecipeSaveRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		recipe := &cipher.Recipe{
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Tags:        req.Tags,
			Pipeline:    cipher.Pipeline{Operations: req.Operations},
		}
		if err := s.svc.SaveRecipe(recipe); err != nil {
			s.writeError(w, http.StatusBadRequest, "InvalidRecipe", err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, recipe)
	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			s.writeError(w, http.StatusBadRequest, "BadRequest", "name query parameter is required")
			return
		}
		if _, ok := s.svc.Recipes().GetRecipe(name); !ok {
			s.writeError(w, http.StatusNotFound, "NotFound", "recipe not found: "+name)
			return
		}
		if err := s.svc.DeleteRecipe(name); err != nil {
			s.writeError(w, http.StatusInternalServerError, "Internal", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleRecipeRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req RecipeRunRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.svc.Recipes() == nil {
		s.writeError(w, http.StatusNotFound, "NotFound", "recipe store not configured")
		return
	}
	if _, ok := s.svc.Recipes().GetRecipe(req.Name); !ok {
		s.writeError(w, http.StatusNotFound, "NotFound", "recipe not found: "+req.Name)
		return
	}
	out, err := s.svc.RunRecipe(r.Context(), req.Name, []byte(req.Input))
	if err != nil {
		s.writeCipherError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PipelineResponse{Output: string(out)})
}
