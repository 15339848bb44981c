package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/citadel/internal/env"
	"github.com/RowanDark/citadel/internal/hill"
)

// Config captures the Citadel configuration resolved from defaults, optional
// files, and environment overrides.
type Config struct {
	Cipher     CipherConfig  `yaml:"cipher"`
	API        APIConfig     `yaml:"api"`
	RPC        RPCConfig     `yaml:"rpc"`
	Audit      AuditConfig   `yaml:"audit"`
	Tracing    TracingConfig `yaml:"tracing"`
	RecipesDir string        `yaml:"recipes_dir"`
}

// CipherConfig describes the alphabet, block size and substitution layer.
type CipherConfig struct {
	Alphabet       string `yaml:"alphabet"`
	Filler         string `yaml:"filler"`
	BlockSize      int    `yaml:"block_size"`
	SBoxMultiplier int    `yaml:"sbox_multiplier"`
	SBoxOffset     int    `yaml:"sbox_offset"`
	// Workers > 0 enables parallel Hill passes in the servers.
	Workers int `yaml:"workers"`
}

// APIConfig controls the HTTP API served by citadeld.
type APIConfig struct {
	Addr         string `yaml:"addr"`
	JWTSecret    string `yaml:"jwt_secret"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// RPCConfig controls the gRPC listener.
type RPCConfig struct {
	Addr string `yaml:"addr"`
}

// AuditConfig selects where audit events are written.
type AuditConfig struct {
	Path   string `yaml:"path"`
	Stdout bool   `yaml:"stdout"`
}

// TracingConfig mirrors tracing.Config.
type TracingConfig struct {
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
	File        string  `yaml:"file"`
}

// Default returns the built-in configuration: the reference cipher with
// both servers on loopback.
func Default() Config {
	return Config{
		Cipher: CipherConfig{
			Alphabet:       hill.LatinSymbols,
			Filler:         string(hill.DefaultFiller),
			BlockSize:      2,
			SBoxMultiplier: hill.DefaultSBoxMultiplier,
			SBoxOffset:     hill.DefaultSBoxOffset,
		},
		API: APIConfig{
			Addr:         "127.0.0.1:8080",
			MaxBodyBytes: 1 << 20,
		},
		RPC: RPCConfig{
			Addr: "127.0.0.1:50051",
		},
		Audit: AuditConfig{
			Stdout: true,
		},
		Tracing: TracingConfig{
			ServiceName: "citadel",
		},
	}
}

// Load resolves the configuration. Files are applied in order, later ones
// overriding earlier ones:
//  1. ~/.citadel/config.yml
//  2. ./citadel.yml
//
// Environment variables prefixed with CITADEL_ have the highest precedence.
func Load() (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if err := applyFile(&cfg, filepath.Join(home, ".citadel", "config.yml"), false); err != nil {
			return Config{}, err
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("determine working directory: %w", err)
	}
	if err := applyFile(&cfg, filepath.Join(wd, "citadel.yml"), false); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile resolves defaults, then path (which must exist), then the
// environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := applyFile(&cfg, path, true); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Engine builds the cipher engine described by c.Cipher.
func (c Config) Engine() (*hill.Engine, error) {
	if utf8.RuneCountInString(c.Cipher.Filler) != 1 {
		return nil, fmt.Errorf("%w: filler must be a single symbol, got %q", hill.ErrInvalidAlphabet, c.Cipher.Filler)
	}
	filler, _ := utf8.DecodeRuneInString(c.Cipher.Filler)
	alphabet, err := hill.NewAlphabet(c.Cipher.Alphabet, filler)
	if err != nil {
		return nil, err
	}
	sbox, err := hill.NewSubstitution(c.Cipher.SBoxMultiplier, c.Cipher.SBoxOffset, alphabet.Size())
	if err != nil {
		return nil, err
	}
	return hill.NewEngine(alphabet, c.Cipher.BlockSize, sbox)
}

// RecipesPath returns RecipesDir, defaulting to ~/.citadel/recipes.
func (c Config) RecipesPath() string {
	if c.RecipesDir != "" {
		return c.RecipesDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".citadel", "recipes")
	}
	return filepath.Join(home, ".citadel", "recipes")
}

type fileConfig struct {
	Cipher *struct {
		Alphabet       *string `yaml:"alphabet"`
		Filler         *string `yaml:"filler"`
		BlockSize      *int    `yaml:"block_size"`
		SBoxMultiplier *int    `yaml:"sbox_multiplier"`
		SBoxOffset     *int    `yaml:"sbox_offset"`
		Workers        *int    `yaml:"workers"`
	} `yaml:"cipher"`
	API *struct {
		Addr         *string `yaml:"addr"`
		JWTSecret    *string `yaml:"jwt_secret"`
		MaxBodyBytes *int64  `yaml:"max_body_bytes"`
	} `yaml:"api"`
	RPC *struct {
		Addr *string `yaml:"addr"`
	} `yaml:"rpc"`
	Audit *struct {
		Path   *string `yaml:"path"`
		Stdout *bool   `yaml:"stdout"`
	} `yaml:"audit"`
	Tracing *struct {
		ServiceName *string  `yaml:"service_name"`
		SampleRatio *float64 `yaml:"sample_ratio"`
		File        *string  `yaml:"file"`
	} `yaml:"tracing"`
	RecipesDir *string `yaml:"recipes_dir"`
}

func applyFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	fc, err := parseYAML(data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fc.apply(cfg)
	return nil
}

func parseYAML(data []byte) (fileConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, err
	}
	return fc, nil
}

func (fc fileConfig) apply(cfg *Config) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	if c := fc.Cipher; c != nil {
		setString(&cfg.Cipher.Alphabet, c.Alphabet)
		setString(&cfg.Cipher.Filler, c.Filler)
		setInt(&cfg.Cipher.BlockSize, c.BlockSize)
		setInt(&cfg.Cipher.SBoxMultiplier, c.SBoxMultiplier)
		setInt(&cfg.Cipher.SBoxOffset, c.SBoxOffset)
		setInt(&cfg.Cipher.Workers, c.Workers)
	}
	if a := fc.API; a != nil {
		setString(&cfg.API.Addr, a.Addr)
		setString(&cfg.API.JWTSecret, a.JWTSecret)
		if a.MaxBodyBytes != nil {
			cfg.API.MaxBodyBytes = *a.MaxBodyBytes
		}
	}
	if r := fc.RPC; r != nil {
		setString(&cfg.RPC.Addr, r.Addr)
	}
	if a := fc.Audit; a != nil {
		setString(&cfg.Audit.Path, a.Path)
		if a.Stdout != nil {
			cfg.Audit.Stdout = *a.Stdout
		}
	}
	if t := fc.Tracing; t != nil {
		setString(&cfg.Tracing.ServiceName, t.ServiceName)
		setString(&cfg.Tracing.File, t.File)
		if t.SampleRatio != nil {
			cfg.Tracing.SampleRatio = *t.SampleRatio
		}
	}
	setString(&cfg.RecipesDir, fc.RecipesDir)
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"ALPHABET":      &cfg.Cipher.Alphabet,
		"FILLER":        &cfg.Cipher.Filler,
		"API_ADDR":      &cfg.API.Addr,
		"JWT_SECRET":    &cfg.API.JWTSecret,
		"RPC_ADDR":      &cfg.RPC.Addr,
		"AUDIT_LOG":     &cfg.Audit.Path,
		"TRACE_SERVICE": &cfg.Tracing.ServiceName,
		"TRACE_FILE":    &cfg.Tracing.File,
		"RECIPES_DIR":   &cfg.RecipesDir,
	}
	for name, dst := range strs {
		if val, ok := env.Lookup(name); ok {
			*dst = val
		}
	}

	ints := map[string]*int{
		"BLOCK_SIZE":      &cfg.Cipher.BlockSize,
		"SBOX_MULTIPLIER": &cfg.Cipher.SBoxMultiplier,
		"SBOX_OFFSET":     &cfg.Cipher.SBoxOffset,
		"WORKERS":         &cfg.Cipher.Workers,
	}
	for name, dst := range ints {
		val, ok := env.Lookup(name)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s%s: %w", env.Prefix, name, err)
		}
		*dst = parsed
	}

	if val, ok := env.Lookup("AUDIT_STDOUT"); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%sAUDIT_STDOUT: %w", env.Prefix, err)
		}
		cfg.Audit.Stdout = parsed
	}
	if val, ok := env.Lookup("TRACE_SAMPLE_RATIO"); ok {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%sTRACE_SAMPLE_RATIO: %w", env.Prefix, err)
		}
		cfg.Tracing.SampleRatio = parsed
	}
	return nil
}
