package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/RowanDark/citadel/internal/cipher"
	"github.com/RowanDark/citadel/internal/exporter"
	"github.com/RowanDark/citadel/internal/hill"
)

func (a *app) passCommand(name, short string) *cobra.Command {
	dir := hill.DirectionEncrypt
	if name == "decrypt" {
		dir = hill.DirectionDecrypt
	}
	var (
		mode    string
		key     string
		iv      string
		text    string
		workers int
	)
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Long: short + ` with the selected mode. Input is read from --text or stdin,
upper-cased, stripped of symbols outside the alphabet and padded with the
filler to a whole number of blocks.

Example:
  citadelctl ` + name + ` --mode citadel --key "3 5 2 7" --iv "1 21" --text HELP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := hill.ParseMode(mode); err != nil {
				return usageError{err: err}
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			input, err := a.readInput(cmd, text)
			if err != nil {
				return err
			}

			var report exporter.Report
			if a.server != "" {
				report, err = a.remotePass(cmd, dir, mode, input, key, iv)
			} else {
				var pass cipher.Pass
				pass, err = a.svc.Run(cmd.Context(), cipher.PassRequest{
					Mode: mode, Direction: dir, Text: input, Key: key, IV: iv, Workers: workers,
				})
				report = exporter.NewReport(pass.ID, pass.Result, a.trace)
			}
			if err != nil {
				return err
			}
			return a.render(cmd, format, report)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", string(hill.ModeCitadel), "cipher mode: hill (ECB) or citadel (CBC)")
	f.StringVarP(&key, "key", "k", "", "key matrix as BLOCK² integers in row-major order, e.g. \"3 5 2 7\"")
	f.StringVar(&iv, "iv", "", "initialisation vector as BLOCK integers (citadel mode)")
	f.StringVarP(&text, "text", "t", "", "input text (default: read stdin)")
	f.IntVar(&workers, "workers", 0, "goroutines for hill passes (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func (a *app) outputFormat() (exporter.Format, error) {
	if a.format == "" {
		if a.trace {
			return exporter.FormatTable, nil
		}
		return "", nil
	}
	format, err := exporter.ParseFormat(a.format)
	if err != nil {
		return "", usageError{err: err}
	}
	return format, nil
}

// render prints only the result line when no format was requested.
func (a *app) render(cmd *cobra.Command, format exporter.Format, report exporter.Report) error {
	out := cmd.OutOrStdout()
	if format == "" {
		_, err := fmt.Fprintln(out, report.Result)
		return err
	}
	data, err := exporter.Encode(format, exporter.Request{Report: report, Alphabet: a.svc.Engine().Alphabet()})
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func (a *app) remotePass(cmd *cobra.Command, dir hill.Direction, mode, text, key, iv string) (exporter.Report, error) {
	client, err := a.remote()
	if err != nil {
		return exporter.Report{}, err
	}
	in, err := structpb.NewStruct(map[string]any{
		"mode": mode, "text": text, "key": key, "iv": iv, "trace": a.trace,
	})
	if err != nil {
		return exporter.Report{}, err
	}
	call := client.Encrypt
	if dir == hill.DirectionDecrypt {
		call = client.Decrypt
	}
	out, err := call(cmd.Context(), in)
	if err != nil {
		return exporter.Report{}, remoteError(err)
	}
	data, err := json.Marshal(out.AsMap())
	if err != nil {
		return exporter.Report{}, err
	}
	var report exporter.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return exporter.Report{}, fmt.Errorf("decode response: %w", err)
	}
	return report, nil
}

// remoteError turns a gRPC status into a plain error; unavailable servers
// count as usage errors.
func remoteError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.Unavailable {
		return usageError{err: errors.New(st.Message())}
	}
	return fmt.Errorf("%s: %s", strings.ToLower(st.Code().String()), st.Message())
}

type keyOutput struct {
	Size int    `json:"size" yaml:"size"`
	Key  string `json:"key" yaml:"key"`
	IV   string `json:"iv" yaml:"iv"`
}

func (a *app) keygenCommand() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random invertible key and IV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cipher.CheckKeySize(size); err != nil {
				return usageError{err: err}
			}
			var out keyOutput
			if a.server != "" {
				client, err := a.remote()
				if err != nil {
					return err
				}
				in, _ := structpb.NewStruct(map[string]any{"size": size})
				resp, err := client.GenerateKey(cmd.Context(), in)
				if err != nil {
					return remoteError(err)
				}
				fields := resp.GetFields()
				out = keyOutput{
					Size: int(fields["size"].GetNumberValue()),
					Key:  fields["key"].GetStringValue(),
					IV:   fields["iv"].GetStringValue(),
				}
			} else {
				km, err := a.svc.GenerateKey(cmd.Context(), size)
				if err != nil {
					return err
				}
				out = keyOutput{Size: km.Key.Size(), Key: hill.FormatInts(km.Key.Flat()), IV: hill.FormatInts(km.IV)}
			}
			return writeStructured(cmd, a.format, out, func() string {
				return fmt.Sprintf("key: %s\niv:  %s\n", out.Key, out.IV)
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "block size of the generated key (default: configured block size)")
	return cmd
}

// writeStructured prints v as JSON or YAML, or the plain text from fallback.
func writeStructured(cmd *cobra.Command, format string, v any, fallback func() string) error {
	out := cmd.OutOrStdout()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		_, err := fmt.Fprint(out, fallback())
		return err
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return usagef("format %q is not supported by %s (use json or yaml)", format, cmd.Name())
	}
}

// formatNames lists the registered exporter formats for flag help.
func formatNames() string {
	specs := exporter.Formats()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = string(spec.Format)
	}
	return strings.Join(names, ", ")
}

func (a *app) sboxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sbox",
		Short: "Print the substitution table used by citadel mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine := a.svc.Engine()
			sub, alphabet := engine.Substitution(), engine.Alphabet()
			k, c, mod := sub.Params()
			forward, inverse := sub.Table(), sub.InverseTable()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "S(x) = (%dx + %d) mod %d\n", k, c, mod)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "X\tSYMBOL\tS(X)\tINVERSE")
			for x := range forward {
				fmt.Fprintf(tw, "%d\t%c\t%d %c\t%d %c\n", x, alphabet.Symbol(x),
					forward[x], alphabet.Symbol(forward[x]), inverse[x], alphabet.Symbol(inverse[x]))
			}
			return tw.Flush()
		},
	}
}
