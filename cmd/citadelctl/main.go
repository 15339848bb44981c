package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/RowanDark/citadel/internal/cipher"
	"github.com/RowanDark/citadel/internal/config"
	"github.com/RowanDark/citadel/internal/logging"
	"github.com/RowanDark/citadel/internal/observability/tracing"
	"github.com/RowanDark/citadel/internal/rpc"
)

const productName = "citadel"

// usageError marks failures caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	format     string
	trace      bool
	server     string

	cfg   config.Config
	svc   *cipher.Service
	audit *logging.AuditLogger
	conn  *grpc.ClientConn
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code: 0 on success, 1
// when the cipher rejects the input, 2 on usage errors.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "required flag", "accepts ", "requires at least", "invalid argument"} {
		if strings.HasPrefix(msg, prefix) {
			return 2
		}
	}
	return 1
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "citadelctl",
		Short: "Hill and Citadel block cipher toolkit",
		Long: `citadelctl encrypts and decrypts alphabet text with the Hill cipher (ECB) or
the Citadel chained construction (CBC with an affine substitution layer), and
prints the per-block trace of every pass.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a citadel.yml (default: ~/.citadel/config.yml then ./citadel.yml)")
	pf.StringVarP(&a.format, "format", "f", "", "output format: "+formatNames()+" (default: result only)")
	pf.BoolVar(&a.trace, "trace", false, "include the per-block trace")
	pf.StringVar(&a.server, "server", "", "run encrypt, decrypt and keygen against a citadeld gRPC address")

	root.AddCommand(
		a.passCommand("encrypt", "Encrypt text"),
		a.passCommand("decrypt", "Decrypt text"),
		a.keygenCommand(),
		a.operationsCommand(),
		a.sboxCommand(),
		a.pipelineCommand(),
		a.recipeCommand(),
		versionCommand(),
	)
	return root
}

// setup loads configuration and builds the local cipher service.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var (
		cfg config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return usagef("load config: %w", err)
	}
	engine, err := cfg.Engine()
	if err != nil {
		return usagef("configure cipher: %w", err)
	}

	audit := logging.NewDiscardLogger()
	if cfg.Audit.Path != "" {
		audit, err = logging.NewAuditLogger("citadelctl", logging.WithoutStdout(), logging.WithFile(cfg.Audit.Path))
		if err != nil {
			return fmt.Errorf("configure audit log: %w", err)
		}
	}
	svc, err := cipher.NewService(engine,
		cipher.WithAudit(audit),
		cipher.WithWorkers(cfg.Cipher.Workers),
		cipher.WithRecipes(cipher.NewRecipeManager(cfg.RecipesPath())),
	)
	if err != nil {
		_ = audit.Close()
		return err
	}
	a.cfg, a.svc, a.audit = cfg, svc, audit
	return nil
}

// remote dials the --server address once per invocation.
func (a *app) remote() (*rpc.Client, error) {
	if a.conn == nil {
		conn, err := grpc.NewClient(a.server,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUnaryInterceptor(tracing.UnaryClientInterceptor()),
		)
		if err != nil {
			return nil, usagef("dial %s: %w", a.server, err)
		}
		a.conn = conn
	}
	return rpc.NewClient(a.conn), nil
}

func (a *app) close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
}

// readInput returns --text when set, otherwise all of stdin.
func (a *app) readInput(cmd *cobra.Command, text string) (string, error) {
	if cmd.Flags().Changed("text") {
		return text, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
