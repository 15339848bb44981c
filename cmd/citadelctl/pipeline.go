package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RowanDark/citadel/internal/cipher"
)

func (a *app) operationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the operations available to pipelines and recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tREVERSE\tDESCRIPTION")
			for _, op := range a.svc.Registry().List() {
				rev, ok := op.Reverse()
				if !ok {
					rev = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Name(), op.Type(), rev, op.Description())
			}
			return tw.Flush()
		},
	}
}

// stageFlags collects --op and --param, shared by pipeline and recipe save.
type stageFlags struct {
	ops    []string
	params []string
}

func (s *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&s.ops, "op", nil, "operation names in order, comma separated or repeated")
	cmd.Flags().StringArrayVar(&s.params, "param", nil, "key=value parameter passed to every stage, e.g. --param key=\"3 5 2 7\"")
	_ = cmd.MarkFlagRequired("op")
}

func (s *stageFlags) operations() ([]cipher.OperationConfig, error) {
	params := make(map[string]interface{}, len(s.params))
	for _, raw := range s.params {
		k, v, ok := strings.Cut(raw, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, usagef("invalid --param %q, expected key=value", raw)
		}
		params[k] = strings.TrimSpace(v)
	}
	ops := make([]cipher.OperationConfig, 0, len(s.ops))
	for _, name := range s.ops {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		stage := cipher.OperationConfig{Name: name}
		if len(params) > 0 {
			stage.Parameters = params
		}
		ops = append(ops, stage)
	}
	if len(ops) == 0 {
		return nil, usagef("at least one --op is required")
	}
	return ops, nil
}

func (a *app) checkOperations(ops []cipher.OperationConfig) error {
	for _, op := range ops {
		if _, ok := a.svc.Registry().Get(op.Name); !ok {
			return usagef("unknown operation %q (see citadelctl operations)", op.Name)
		}
	}
	return nil
}

func (a *app) pipelineCommand() *cobra.Command {
	var (
		stages stageFlags
		text   string
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run operations in order against the input",
		Long: `Run operations in order, feeding each output into the next stage.

Example:
  citadelctl pipeline --op alphabet_normalize,citadel_encrypt --param key="3 5 2 7" --param iv="1 21" --text "help"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, err := stages.operations()
			if err != nil {
				return err
			}
			if err := a.checkOperations(ops); err != nil {
				return err
			}
			input, err := a.readInput(cmd, text)
			if err != nil {
				return err
			}
			out, err := a.svc.RunPipeline(cmd.Context(), ops, []byte(input))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	stages.register(cmd)
	cmd.Flags().StringVarP(&text, "text", "t", "", "input text (default: read stdin)")
	return cmd
}

func (a *app) recipeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage saved pipelines",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args); err != nil {
				return err
			}
			return a.svc.Recipes().LoadRecipes()
		},
	}
	cmd.AddCommand(a.recipeSaveCommand(), a.recipeListCommand(), a.recipeRunCommand(), a.recipeDeleteCommand())
	return cmd
}

func (a *app) recipeSaveCommand() *cobra.Command {
	var (
		stages      stageFlags
		description string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save a pipeline under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := stages.operations()
			if err != nil {
				return err
			}
			if err := a.checkOperations(ops); err != nil {
				return err
			}
			recipe := &cipher.Recipe{
				Name:        args[0],
				Description: description,
				Tags:        tags,
				Pipeline:    cipher.Pipeline{Operations: ops},
			}
			if err := a.svc.SaveRecipe(recipe); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved recipe %s (%s)\n", recipe.Name, recipe.ID)
			return err
		},
	}
	stages.register(cmd)
	cmd.Flags().StringVar(&description, "description", "", "recipe description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags used by recipe list --search")
	return cmd
}

func (a *app) recipeListCommand() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipes := a.svc.Recipes().ListRecipes()
			if search != "" {
				recipes = a.svc.Recipes().SearchRecipes(search)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tOPERATIONS\tTAGS\tDESCRIPTION")
			for _, r := range recipes {
				names := make([]string, len(r.Pipeline.Operations))
				for i, op := range r.Pipeline.Operations {
					names[i] = op.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, strings.Join(names, ","), strings.Join(r.Tags, ","), r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive filter on name, description and tags")
	return cmd
}

func (a *app) recipeRunCommand() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a saved recipe against the input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.svc.Recipes().GetRecipe(args[0]); !ok {
				return usagef("recipe not found: %s", args[0])
			}
			input, err := a.readInput(cmd, text)
			if err != nil {
				return err
			}
			out, err := a.svc.RunRecipe(cmd.Context(), args[0], []byte(input))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "input text (default: read stdin)")
	return cmd
}

func (a *app) recipeDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.svc.Recipes().GetRecipe(args[0]); !ok {
				return usagef("recipe not found: %s", args[0])
			}
			if err := a.svc.DeleteRecipe(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted recipe %s\n", args[0])
			return err
		},
	}
}
