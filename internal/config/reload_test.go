// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const reloadBase = `
catalog:
  dramabox:
    baseUrl: https://db.example/api
    token: first
`

func TestConfigHolder_Reload(t *testing.T) {
	path := writeConfig(t, t.TempDir(), reloadBase)
	loader := newTestLoader(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  dramabox:
    baseUrl: https://db2.example/api
    token: second
log:
  level: debug
`), 0o600))

	require.NoError(t, holder.Reload(context.Background()))

	got := holder.Get()
	assert.Equal(t, "https://db2.example/api", got.Catalog.DramaBox.BaseURL)
	assert.Equal(t, "second", got.Catalog.DramaBox.Token)
	assert.Equal(t, "debug", got.Log.Level)

	select {
	case notified := <-ch:
		assert.Equal(t, got, notified)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestConfigHolder_ReloadInvalidKeepsOld(t *testing.T) {
	path := writeConfig(t, t.TempDir(), reloadBase)
	loader := newTestLoader(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  bogus: true\n"), 0o600))

	err = holder.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
	assert.Equal(t, initial, holder.Get())
	assert.Empty(t, ch)
}

func TestConfigHolder_ListenerFullDoesNotBlock(t *testing.T) {
	path := writeConfig(t, t.TempDir(), reloadBase)
	loader := newTestLoader(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig) // unbuffered, never read
	holder.RegisterListener(ch)

	done := make(chan error, 1)
	go func() { done <- holder.Reload(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Reload blocked on a full listener")
	}
}

func TestConfigHolder_WatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := writeConfig(t, dir, reloadBase)
	loader := newTestLoader(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))
	defer holder.Stop()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(dir+"/other.yaml", []byte("x: 1\n"), 0o600))

	require.NoError(t, WriteFile(path, func() AppConfig {
		c := initial
		c.Catalog.DramaBox.Token = "rotated"
		return c
	}(), true))

	select {
	case cfg := <-ch:
		assert.Equal(t, "rotated", cfg.Catalog.DramaBox.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
	holder.Stop()
}

func TestConfigHolder_WatcherDisabledWithoutFile(t *testing.T) {
	holder := NewConfigHolder(Defaults(), newTestLoader("", nil))
	require.NoError(t, holder.StartWatcher(context.Background()))
	holder.Stop()
}
