// Package cipher exposes the Hill and Citadel modes as named operations.
//
// # Operations
//
// NewDefaultRegistry binds five operations to a hill.Engine:
//   - hill_encrypt / hill_decrypt - block-by-block Hill cipher (param: key, optional workers)
//   - citadel_encrypt / citadel_decrypt - chained Hill with substitution (params: key, iv)
//   - alphabet_normalize - sanitize and pad text, not reversible
//
// Keys and IVs may be passed as whitespace-separated strings or as integer
// arrays:
//
//	reg, _ := cipher.NewDefaultRegistry(hill.DefaultEngine())
//	op, _ := reg.Get("citadel_encrypt")
//	out, _ := op.Execute(ctx, []byte("HELP"), map[string]interface{}{
//	    "key": "3 5 2 7",
//	    "iv":  []int{1, 21},
//	})
//	// out: []byte("GOXY")
//
// # Pipelines
//
//	pipeline := &cipher.Pipeline{
//	    Operations: []cipher.OperationConfig{
//	        {Name: "hill_encrypt", Parameters: map[string]interface{}{"key": "3 5 2 7"}},
//	        {Name: "citadel_encrypt", Parameters: map[string]interface{}{"key": "5 8 17 3", "iv": "1 21"}},
//	    },
//	    Reversible: true,
//	}
//	encoded, _ := pipeline.Execute(ctx, reg, []byte("attack at dawn"))
//	reversed, _ := pipeline.Reverse(reg)
//	decoded, _ := reversed.Execute(ctx, reg, encoded)
//
// # Recipes
//
// RecipeManager saves pipelines under a name, optionally as JSON files in a
// directory. Each recipe receives a ULID on first save.
//
// # Thread Safety
//
// Registry and RecipeManager use internal locking. Operations hold only an
// immutable engine and are safe for concurrent use.
package cipher
