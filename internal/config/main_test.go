// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	// Unset DRAMARELAY_* and the legacy aliases so the host environment
	// cannot leak into loader tests.
	legacy := map[string]bool{"PORT": true, "API_URL": true, "AUTH_TOKEN": true, "SM_API_URL": true, "SM_AUTH_TOKEN": true}
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(key, EnvPrefix) || legacy[key] {
			if err := os.Unsetenv(key); err != nil {
				panic("failed to unset env: " + err.Error())
			}
		}
	}

	os.Exit(m.Run())
}

// envMap returns a lookup function backed by m.
func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// newTestLoader returns a loader that reads env from m instead of the process.
func newTestLoader(path string, m map[string]string) *Loader {
	l := NewLoader(path, "test")
	l.lookupEnv = envMap(m)
	return l
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := dir + "/config.yaml"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
