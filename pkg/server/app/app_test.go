package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/config"
	"github.com/recontor/recontor/pkg/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.WorkspaceDir = t.TempDir()
	cfg.Server.Port = 0 // any free port
	cfg.Engine.PollInterval = 10 * time.Millisecond
	cfg.Engine.SettleDelay = time.Millisecond
	cfg.Engine.StopGrace = time.Millisecond
	return cfg
}

func TestNewAssemblesApp(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a.backend)
	require.NotNil(t, a.dispatcher)
	require.NotNil(t, a.httpServer)
	require.False(t, a.ready.Load())
}

func TestRunLifecycleAndCrashRecovery(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.JobsEnabled = false // no dispatcher: the stuck record must stay failed

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	// A record left running by a crashed instance.
	require.NoError(t, a.backend.Scans().Create(context.Background(), &storage.ScanRecord{
		ID:        "scan-stuck",
		Domain:    "example.com",
		Mode:      storage.ModePassive,
		Status:    storage.StatusRunning,
		Process:   &storage.ProcessHandle{PID: 777, PGID: 777},
		CreatedAt: time.Now().UTC(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.ready.Load()
	}, 2*time.Second, 5*time.Millisecond)

	rec, err := a.backend.Scans().Get(ctx, "scan-stuck")
	require.NoError(t, err)
	require.Equal(t, storage.StatusFailed, rec.Status)
	require.Equal(t, "scan interrupted by server restart", rec.ErrorMessage)
	require.Nil(t, rec.Process)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	require.False(t, a.ready.Load())
}
