package cipher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RecipeManager keeps recipes in memory and, when storePath is set, mirrors
// each one to <storePath>/<name>.json.
type RecipeManager struct {
	recipes   map[string]*Recipe
	storePath string
	mu        sync.RWMutex
	now       func() time.Time
}

// NewRecipeManager creates a manager. An empty storePath keeps recipes in
// memory only.
func NewRecipeManager(storePath string) *RecipeManager {
	return &RecipeManager{
		recipes:   make(map[string]*Recipe),
		storePath: storePath,
		now:       time.Now,
	}
}

// SaveRecipe stores recipe, replacing any recipe with the same name. The
// ID and creation time of a replaced recipe are preserved.
func (rm *RecipeManager) SaveRecipe(recipe *Recipe) error {
	if recipe == nil || strings.TrimSpace(recipe.Name) == "" {
		return fmt.Errorf("recipe name cannot be empty")
	}
	if len(recipe.Pipeline.Operations) == 0 {
		return fmt.Errorf("recipe %s has no operations", recipe.Name)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := rm.now().UTC()
	if existing, ok := rm.recipes[recipe.Name]; ok {
		if recipe.ID == "" {
			recipe.ID = existing.ID
		}
		if recipe.CreatedAt == "" {
			recipe.CreatedAt = existing.CreatedAt
		}
	}
	if recipe.ID == "" {
		recipe.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	}
	if recipe.CreatedAt == "" {
		recipe.CreatedAt = now.Format(time.RFC3339)
	}
	recipe.UpdatedAt = now.Format(time.RFC3339)

	if rm.storePath != "" {
		if err := rm.persistRecipe(recipe); err != nil {
			return err
		}
	}
	rm.recipes[recipe.Name] = recipe
	return nil
}

// GetRecipe retrieves a recipe by name.
func (rm *RecipeManager) GetRecipe(name string) (*Recipe, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	recipe, exists := rm.recipes[name]
	return recipe, exists
}

// ListRecipes returns all recipes sorted by name.
func (rm *RecipeManager) ListRecipes() []*Recipe {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	recipes := make([]*Recipe, 0, len(rm.recipes))
	for _, recipe := range rm.recipes {
		recipes = append(recipes, recipe)
	}
	sortRecipes(recipes)
	return recipes
}

// DeleteRecipe removes a recipe. Deleting an unknown name is not an error.
func (rm *RecipeManager) DeleteRecipe(name string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	delete(rm.recipes, name)
	if rm.storePath == "" {
		return nil
	}
	if err := os.Remove(rm.recipePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete recipe file: %w", err)
	}
	return nil
}

// LoadRecipes reads every *.json file under the store path.
func (rm *RecipeManager) LoadRecipes() error {
	if rm.storePath == "" {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if err := os.MkdirAll(rm.storePath, 0o755); err != nil {
		return fmt.Errorf("failed to create recipes directory: %w", err)
	}
	entries, err := os.ReadDir(rm.storePath)
	if err != nil {
		return fmt.Errorf("failed to read recipes directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(rm.storePath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read recipe %s: %w", entry.Name(), err)
		}
		var recipe Recipe
		if err := json.Unmarshal(data, &recipe); err != nil {
			return fmt.Errorf("failed to parse recipe %s: %w", entry.Name(), err)
		}
		rm.recipes[recipe.Name] = &recipe
	}
	return nil
}

// SearchRecipes matches query case-insensitively against names,
// descriptions and tags.
func (rm *RecipeManager) SearchRecipes(query string) []*Recipe {
	q := strings.ToLower(query)

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	results := make([]*Recipe, 0)
	for _, recipe := range rm.recipes {
		if matchesRecipe(recipe, q) {
			results = append(results, recipe)
		}
	}
	sortRecipes(results)
	return results
}

func matchesRecipe(recipe *Recipe, q string) bool {
	if strings.Contains(strings.ToLower(recipe.Name), q) || strings.Contains(strings.ToLower(recipe.Description), q) {
		return true
	}
	for _, tag := range recipe.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func (rm *RecipeManager) persistRecipe(recipe *Recipe) error {
	if err := os.MkdirAll(rm.storePath, 0o755); err != nil {
		return fmt.Errorf("failed to create recipes directory: %w", err)
	}
	data, err := json.MarshalIndent(recipe, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize recipe: %w", err)
	}
	if err := os.WriteFile(rm.recipePath(recipe.Name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}
	return nil
}

func (rm *RecipeManager) recipePath(name string) string {
	return filepath.Join(rm.storePath, sanitizeFilename(name)+".json")
}

// sanitizeFilename keeps letters, digits, '-' and '_'; spaces become '_'.
func sanitizeFilename(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	if safe == "" {
		return "recipe"
	}
	return safe
}

func sortRecipes(recipes []*Recipe) {
	sort.Slice(recipes, func(i, j int) bool {
		return recipes[i].Name < recipes[j].Name
	})
}
