// Package env resolves CITADEL_* variables and their deprecated aliases.
package env

import (
	"log"
	"os"
	"strings"
	"sync"
)

const (
	// Prefix is the current environment variable prefix.
	Prefix = "CITADEL_"
	// LegacyPrefix is accepted with a one-time deprecation warning.
	LegacyPrefix = "PROJECT_CITADEL_"
)

var (
	warnMu     sync.Mutex
	warnLogger func(format string, args ...any) = log.Printf
	warned     = map[string]bool{}
)

// Lookup returns the trimmed value of CITADEL_<name>, falling back to
// PROJECT_CITADEL_<name>. Empty values count as unset.
func Lookup(name string) (string, bool) {
	return LookupKeys(Prefix+name, LegacyPrefix+name)
}

// LookupKeys returns the first non-empty variable among key and its legacy
// aliases, warning once per alias that is used.
func LookupKeys(key string, legacy ...string) (string, bool) {
	if v, ok := nonEmpty(key); ok {
		return v, true
	}
	for _, old := range legacy {
		if v, ok := nonEmpty(old); ok {
			warnDeprecated(old, key)
			return v, true
		}
	}
	return "", false
}

func nonEmpty(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func warnDeprecated(oldKey, newKey string) {
	warnMu.Lock()
	defer warnMu.Unlock()
	if warned[oldKey] {
		return
	}
	warned[oldKey] = true
	warnLogger("%s is deprecated; use %s", oldKey, newKey)
}

// ResetWarningsForTesting forgets which aliases already warned.
func ResetWarningsForTesting() {
	warnMu.Lock()
	warned = map[string]bool{}
	warnMu.Unlock()
}

// SetWarnLoggerForTesting swaps the warning sink and returns a restore func.
func SetWarnLoggerForTesting(fn func(format string, args ...any)) (restore func()) {
	warnMu.Lock()
	previous := warnLogger
	warnLogger = fn
	warnMu.Unlock()
	return func() {
		warnMu.Lock()
		warnLogger = previous
		warnMu.Unlock()
	}
}
