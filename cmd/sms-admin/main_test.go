package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sms-storage/internal/app"
	"github.com/noah-isme/sms-storage/pkg/config"
)

func newStack(t *testing.T) *app.App {
	t.Helper()
	cfg := &config.Config{
		Local:    config.LocalStoreConfig{Driver: config.LocalDriverMemory},
		Cloud:    config.CloudConfig{Driver: config.CloudDriverNone},
		Password: config.PasswordConfig{Algorithm: "sha256", DefaultPassword: "Elostaz@2025"},
	}
	stack, err := app.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close() })
	return stack
}

func TestRunUsage(t *testing.T) {
	stack := newStack(t)
	ctx := context.Background()
	for _, args := range [][]string{nil, {"bogus"}, {"mode"}, {"import"}, {"export", "2025"}, {"admin-password"}} {
		assert.ErrorIs(t, run(ctx, stack, args, &bytes.Buffer{}), errUsage, "%v", args)
	}
}

func TestRunModeGetAndSet(t *testing.T) {
	stack := newStack(t)
	ctx := context.Background()

	out := &bytes.Buffer{}
	require.NoError(t, run(ctx, stack, []string{"mode", "get"}, out))
	assert.Contains(t, out.String(), `"mode": "local"`)

	assert.Error(t, run(ctx, stack, []string{"mode", "set", "cloud"}, &bytes.Buffer{}))
	require.NoError(t, run(ctx, stack, []string{"mode", "set", "local"}, &bytes.Buffer{}))
}

func TestRunImportExportAndPassword(t *testing.T) {
	stack := newStack(t)
	ctx := context.Background()
	dir := t.TempDir()

	roster := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(roster, []byte("S1,Ahmed,first,sat_tue,p1\nS2,Mona,second,sun_wed,p2\n"), 0o600))
	out := &bytes.Buffer{}
	require.NoError(t, run(ctx, stack, []string{"import", roster}, out))
	assert.Contains(t, out.String(), `"successCount": 2`)

	target := filepath.Join(dir, "march.csv")
	require.NoError(t, run(ctx, stack, []string{"export", "2025", "3", "csv", "-o", target}, &bytes.Buffer{}))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "S2,Mona")

	require.NoError(t, run(ctx, stack, []string{"admin-password", "n3w-secret"}, &bytes.Buffer{}))
	require.NoError(t, stack.Adapter.VerifyAdminPassword(ctx, "n3w-secret"))

	assert.Error(t, run(ctx, stack, []string{"migrate"}, &bytes.Buffer{}))
}
