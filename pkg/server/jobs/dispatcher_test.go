package jobs

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/storage"
)

// blockingController parks every spawned "engine" until released, so
// tests can hold scans in the running state deterministically.
type blockingController struct {
	mu      sync.Mutex
	spawned int
	release chan struct{}
}

func newBlockingController() *blockingController {
	return &blockingController{release: make(chan struct{})}
}

func (c *blockingController) Spawn(spec scanexec.ProcSpec) (storage.ProcessHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spawned++
	return storage.ProcessHandle{PID: 1000 + c.spawned, PGID: 1000 + c.spawned}, nil
}

func (c *blockingController) Wait(handle storage.ProcessHandle) error {
	<-c.release
	return nil
}

func (c *blockingController) Signal(pgid int) error    { return nil }
func (c *blockingController) ForceKill(pgid int) error { return nil }
func (c *blockingController) Alive(pgid int) bool      { return false }

func (c *blockingController) spawnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spawned
}

func newTestDispatcher(t *testing.T, concurrency int) (*Dispatcher, storage.Backend, *blockingController) {
	t.Helper()

	workspace := t.TempDir()
	backend, err := storage.NewLocalBackend(context.Background(), &storage.Config{
		WorkspaceRoot: workspace,
	})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(context.Background()))

	proc := newBlockingController()
	runner := scanexec.NewRunner(backend, scanexec.Options{
		EngineBinary: "reconftw",
		SettleDelay:  time.Millisecond,
		StopGrace:    time.Millisecond,
	}).WithProcessController(proc)

	d := NewDispatcher(backend, runner, DispatcherConfig{
		Concurrency:  concurrency,
		PollInterval: 10 * time.Millisecond,
		ErrorBackoff: 10 * time.Millisecond,
		OutputRoot:   filepath.Join(workspace, "scans"),
	})

	t.Cleanup(func() {
		close(proc.release)
		// Give in-flight runners a moment to reach a terminal state
		// before the temp workspace disappears.
		require.Eventually(t, func() bool {
			n, err := backend.Scans().CountByStatus(context.Background(), storage.StatusRunning)
			return err == nil && n == 0
		}, 2*time.Second, 5*time.Millisecond)
	})

	return d, backend, proc
}

func createPendingScan(t *testing.T, backend storage.Backend, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, backend.Scans().Create(context.Background(), &storage.ScanRecord{
		ID:        id,
		Domain:    "example.com",
		Mode:      storage.ModePassive,
		Status:    storage.StatusPending,
		CreatedAt: createdAt,
	}))
}

func statusOf(t *testing.T, backend storage.Backend, id string) storage.ScanStatus {
	t.Helper()
	rec, err := backend.Scans().Get(context.Background(), id)
	require.NoError(t, err)
	return rec.Status
}

func TestTickRespectsConcurrencyCeiling(t *testing.T) {
	d, backend, proc := newTestDispatcher(t, 2)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	createPendingScan(t, backend, "scan-a", base)
	createPendingScan(t, backend, "scan-b", base.Add(time.Minute))
	createPendingScan(t, backend, "scan-c", base.Add(2*time.Minute))

	require.NoError(t, d.tick(ctx))

	require.Eventually(t, func() bool {
		return proc.spawnCount() == 2
	}, time.Second, 5*time.Millisecond)

	// FIFO: the two oldest were promoted, the newest still waits.
	require.Equal(t, storage.StatusRunning, statusOf(t, backend, "scan-a"))
	require.Equal(t, storage.StatusRunning, statusOf(t, backend, "scan-b"))
	require.Equal(t, storage.StatusPending, statusOf(t, backend, "scan-c"))

	// At capacity a further tick promotes nothing.
	require.NoError(t, d.tick(ctx))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, storage.StatusPending, statusOf(t, backend, "scan-c"))
	require.Equal(t, 2, proc.spawnCount())
}

func TestTickPromotesOldestFirst(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, 1)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	createPendingScan(t, backend, "scan-new", base.Add(time.Minute))
	createPendingScan(t, backend, "scan-old", base)

	require.NoError(t, d.tick(ctx))

	require.Eventually(t, func() bool {
		return statusOf(t, backend, "scan-old") == storage.StatusRunning
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, storage.StatusPending, statusOf(t, backend, "scan-new"))
}

func TestTickAllocatesScanPaths(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, 1)
	ctx := context.Background()

	createPendingScan(t, backend, "scan-a", time.Now().UTC())
	require.NoError(t, d.tick(ctx))

	rec, err := backend.Scans().Get(ctx, "scan-a")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(d.cfg.OutputRoot, "scan-a", "output"), rec.OutputPath)
	require.Equal(t, filepath.Join(d.cfg.OutputRoot, "scan-a", "engine.log"), rec.LogFile)
	require.NotNil(t, rec.StartedAt)
}

func TestDispatchSkipsLostRace(t *testing.T) {
	d, backend, proc := newTestDispatcher(t, 2)
	ctx := context.Background()

	createPendingScan(t, backend, "scan-a", time.Now().UTC())
	rec, err := backend.Scans().Get(ctx, "scan-a")
	require.NoError(t, err)

	// Another dispatcher promoted the record between List and dispatch.
	require.NoError(t, backend.Scans().UpdateStatusIf(ctx, "scan-a",
		storage.StatusPending, storage.StatusRunning, storage.ScanUpdates{}))

	d.dispatch(ctx, rec)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, proc.spawnCount(), "a lost promotion race must not start an engine")

	// Park the manually promoted record in a terminal state.
	require.NoError(t, backend.Scans().UpdateStatusIf(ctx, "scan-a",
		storage.StatusRunning, storage.StatusStopped, storage.ScanUpdates{}))
}

func TestStartAndStopLifecycle(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, 1)
	ctx := context.Background()

	createPendingScan(t, backend, "scan-a", time.Now().UTC())

	require.NoError(t, d.Start(ctx))
	require.Error(t, d.Start(ctx), "second start must be rejected")

	// The polling loop picks the pending scan up on its own.
	require.Eventually(t, func() bool {
		return statusOf(t, backend, "scan-a") == storage.StatusRunning
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))
	require.NoError(t, d.Stop(stopCtx), "stop is idempotent")
}
