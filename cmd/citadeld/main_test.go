package main

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/citadel/internal/api"
	"github.com/RowanDark/citadel/internal/config"
	"github.com/RowanDark/citadel/internal/logging"
	"github.com/RowanDark/citadel/internal/rpc"
)

func TestServeBootsAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	audit, err := logging.NewAuditLogger("citadeld_test", logging.WithoutStdout(), logging.WithWriter(io.Discard))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.API.Addr = "127.0.0.1:0"
	cfg.RecipesDir = t.TempDir()

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg, lis, log, audit)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create gRPC client: %v", err)
	}
	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	in, _ := structpb.NewStruct(map[string]any{"mode": "citadel", "text": "help", "key": "3 5 2 7", "iv": "1 21"})
	out, err := rpc.NewClient(conn).Encrypt(callCtx, in, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := out.GetFields()["result"].GetStringValue(); got != "GOXY" {
		t.Fatalf("result = %q", got)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("failed to close client connection: %v", err)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestServeRejectsInvalidCipherConfig(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer lis.Close()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Cipher.SBoxMultiplier = 13
	if err := serve(context.Background(), cfg, lis, log, logging.NewDiscardLogger()); err == nil {
		t.Fatal("expected error for a non-invertible substitution multiplier")
	}
}

func TestMintToken(t *testing.T) {
	cfg := config.Default()
	if _, err := mint(cfg, "ops", time.Minute); err == nil {
		t.Fatal("expected error without a jwt secret")
	}
	cfg.API.JWTSecret = "s3cret"
	token, err := mint(cfg, "ops", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	auth, err := api.NewAuthenticator([]byte("s3cret"), jwtIssuer, time.Minute)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	claims, err := auth.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "ops" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestNewAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := newAuditLogger(config.AuditConfig{Path: path})
	if err != nil {
		t.Fatalf("newAuditLogger: %v", err)
	}
	if err := logger.Emit(logging.AuditEvent{EventType: logging.EventServerLifecycle, Decision: logging.DecisionInfo}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	discard, err := newAuditLogger(config.AuditConfig{})
	if err != nil || discard == nil {
		t.Fatalf("discard logger: %v", err)
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var sb strings.Builder
	log := newLogger(&sb)
	log.WithField("addr", "127.0.0.1:0").Info("grpc listening")
	if !strings.Contains(sb.String(), `"addr":"127.0.0.1:0"`) {
		t.Fatalf("unexpected log line %q", sb.String())
	}
}
