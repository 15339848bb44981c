package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RowanDark/citadel/internal/api"
	"github.com/RowanDark/citadel/internal/cipher"
	"github.com/RowanDark/citadel/internal/config"
	"github.com/RowanDark/citadel/internal/logging"
	"github.com/RowanDark/citadel/internal/observability/tracing"
	"github.com/RowanDark/citadel/internal/rpc"
)

var version = "dev"

const jwtIssuer = "citadel"

func main() {
	configPath := flag.String("config", "", "path to a citadel.yml (default: ~/.citadel/config.yml then ./citadel.yml)")
	apiAddr := flag.String("api-addr", "", "override the REST API address (use \"off\" to disable)")
	rpcAddr := flag.String("rpc-addr", "", "override the gRPC address")
	mintToken := flag.String("mint-token", "", "print an API bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "lifetime of tokens printed by --mint-token")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("citadeld %s\n", version)
		return
	}

	log := newLogger(os.Stderr)
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithError(err).Warn("unknown log level, using info")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("load config")
		os.Exit(2)
	}
	if addr := strings.TrimSpace(*apiAddr); addr != "" {
		cfg.API.Addr = addr
	}
	if strings.EqualFold(cfg.API.Addr, "off") {
		cfg.API.Addr = ""
	}
	if addr := strings.TrimSpace(*rpcAddr); addr != "" {
		cfg.RPC.Addr = addr
	}

	if subject := strings.TrimSpace(*mintToken); subject != "" {
		token, err := mint(cfg, subject, *tokenTTL)
		if err != nil {
			log.WithError(err).Error("mint token")
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("citadeld stopped")
		os.Exit(1)
	}
}

func newLogger(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetOutput(out)
	log.SetLevel(logrus.InfoLevel)
	return log
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func mint(cfg config.Config, subject string, ttl time.Duration) (string, error) {
	if cfg.API.JWTSecret == "" {
		return "", errors.New("api.jwt_secret is not configured")
	}
	auth, err := api.NewAuthenticator([]byte(cfg.API.JWTSecret), jwtIssuer, ttl)
	if err != nil {
		return "", err
	}
	token, _, err := auth.Mint(subject, ttl)
	return token, err
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	audit, err := newAuditLogger(cfg.Audit)
	if err != nil {
		return fmt.Errorf("configure audit logger: %w", err)
	}
	defer audit.Close()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
		FilePath:    cfg.Tracing.File,
	})
	if err != nil {
		return fmt.Errorf("configure tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown")
		}
	}()
	if cfg.Tracing.SampleRatio > 0 {
		log.WithFields(logrus.Fields{"file": cfg.Tracing.File, "ratio": cfg.Tracing.SampleRatio}).Info("tracing enabled")
	}

	lis, err := net.Listen("tcp", cfg.RPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.RPC.Addr, err)
	}
	return serve(ctx, cfg, lis, log, audit)
}

// serve runs the gRPC server on lis and, when configured, the REST API until
// ctx is cancelled or either server fails.
func serve(ctx context.Context, cfg config.Config, lis net.Listener, log *logrus.Logger, audit *logging.AuditLogger) error {
	engine, err := cfg.Engine()
	if err != nil {
		return fmt.Errorf("configure cipher: %w", err)
	}
	recipes := cipher.NewRecipeManager(cfg.RecipesPath())
	if err := recipes.LoadRecipes(); err != nil {
		log.WithError(err).Warn("recipes not loaded")
	}
	svc, err := cipher.NewService(engine,
		cipher.WithAudit(audit.WithComponent("cipher")),
		cipher.WithWorkers(cfg.Cipher.Workers),
		cipher.WithRecipes(recipes),
	)
	if err != nil {
		return err
	}

	grpcSrv, err := rpc.NewGRPCServer(svc)
	if err != nil {
		return err
	}

	var apiSrv *api.Server
	if cfg.API.Addr != "" {
		var auth *api.Authenticator
		if cfg.API.JWTSecret != "" {
			if auth, err = api.NewAuthenticator([]byte(cfg.API.JWTSecret), jwtIssuer, time.Hour); err != nil {
				return err
			}
		}
		apiSrv, err = api.NewServer(api.Config{
			Addr:         cfg.API.Addr,
			Service:      svc,
			Auth:         auth,
			Logger:       audit.WithComponent("api"),
			MaxBodyBytes: cfg.API.MaxBodyBytes,
		})
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(rpc.Serve(ctx, grpcSrv, lis, audit.WithComponent("rpc")))
	}()
	log.WithFields(logrus.Fields{"addr": lis.Addr().String(), "block_size": engine.BlockSize(), "modulus": engine.Modulus()}).Info("grpc listening")

	if apiSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(apiSrv.Run(ctx))
		}()
		log.WithFields(logrus.Fields{"addr": cfg.API.Addr, "auth": cfg.API.JWTSecret != ""}).Info("api listening")
	}

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	return firstErr
}

func newAuditLogger(cfg config.AuditConfig) (*logging.AuditLogger, error) {
	opts := []logging.Option{}
	if !cfg.Stdout {
		opts = append(opts, logging.WithoutStdout())
	}
	if path := strings.TrimSpace(cfg.Path); path != "" {
		opts = append(opts, logging.WithFile(path))
	}
	if !cfg.Stdout && cfg.Path == "" {
		return logging.NewDiscardLogger(), nil
	}
	return logging.NewAuditLogger("citadeld", opts...)
}
