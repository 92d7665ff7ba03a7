package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "recontor")
	require.Contains(t, out, "dev")
}

func TestScanStartQueueAndList(t *testing.T) {
	workspace := t.TempDir()

	out, err := execute(t, "scan", "start", "https://Example.COM", "--queue",
		"--mode", "passive", "--workspace-dir", workspace, "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "queued for example.com")

	backend, err := storage.NewLocalBackend(context.Background(), &storage.Config{
		WorkspaceRoot: workspace,
	})
	require.NoError(t, err)
	records, err := backend.Scans().List(context.Background(), storage.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "example.com", records[0].Domain)
	require.Equal(t, storage.StatusPending, records[0].Status)

	listOut, err := execute(t, "scan", "list", "--workspace-dir", workspace, "--no-color")
	require.NoError(t, err)
	require.Contains(t, listOut, "example.com")
	require.Contains(t, listOut, "pending")
}

func TestScanStartRejectsInvalidDomain(t *testing.T) {
	workspace := t.TempDir()

	_, err := execute(t, "scan", "start", "not a domain", "--queue",
		"--workspace-dir", workspace, "--no-color")
	require.Error(t, err)
}

func TestScanStatusNotFound(t *testing.T) {
	workspace := t.TempDir()

	_, err := execute(t, "scan", "status", "missing-id",
		"--workspace-dir", workspace, "--no-color")
	require.Error(t, err)
}

func TestStorageGCDryRun(t *testing.T) {
	workspace := t.TempDir()

	out, err := execute(t, "storage", "gc", "--dry-run", "--max-age-days", "30",
		"--workspace-dir", workspace, "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "would delete 0 scan(s)")
}
