package scans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/storage"
)

func newTestService(t *testing.T) (*Service, storage.Backend) {
	t.Helper()

	backend, err := storage.NewLocalBackend(context.Background(), &storage.Config{
		WorkspaceRoot: t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(context.Background()))

	runner := scanexec.NewRunner(backend, scanexec.Options{EngineBinary: "reconftw"})
	return NewService(backend, runner), backend
}

func TestStartQueuesScan(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Start(ctx, "https://Example.COM/login", storage.ModePassive)
	require.NoError(t, err)

	// The domain is normalized before anything is persisted.
	require.Equal(t, "example.com", rec.Domain)
	require.Equal(t, storage.StatusPending, rec.Status)
	require.Equal(t, storage.ModePassive, rec.Mode)
	require.NotNil(t, rec.QueuedAt)
	require.Nil(t, rec.StartedAt)

	_, err = uuid.Parse(rec.ID)
	require.NoError(t, err, "scan IDs are UUIDs")

	stored, err := backend.Scans().Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Domain, stored.Domain)
}

func TestStartRejectsInvalidInput(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	var invalidInput *storage.InvalidInputError

	_, err := svc.Start(ctx, "not a domain", storage.ModePassive)
	require.ErrorAs(t, err, &invalidInput)

	_, err = svc.Start(ctx, "", storage.ModePassive)
	require.ErrorAs(t, err, &invalidInput)

	_, err = svc.Start(ctx, "example.com", storage.ScanMode("bogus"))
	require.ErrorAs(t, err, &invalidInput)

	// Validation failures never leave a record behind.
	all, err := backend.Scans().List(ctx, storage.ScanFilter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestStartBlockedTargetFailsImmediately(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Start(ctx, "127.0.0.1", storage.ModePassive)
	require.NoError(t, err)

	// Blocked targets never queue: the record is born failed.
	require.Equal(t, storage.StatusFailed, rec.Status)
	require.Contains(t, rec.ErrorMessage, "loopback or private")
	require.NotNil(t, rec.CompletedAt)

	stored, err := backend.Scans().Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StatusFailed, stored.Status)

	pending, err := backend.Scans().List(ctx, storage.ScanFilter{Status: storage.StatusPending})
	require.NoError(t, err)
	require.Empty(t, pending)
}

func seedScan(t *testing.T, backend storage.Backend, status storage.ScanStatus) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()
	rec := &storage.ScanRecord{
		ID:        id,
		Domain:    "example.com",
		Mode:      storage.ModePassive,
		Status:    status,
		CreatedAt: now,
	}
	if status == storage.StatusCompleted {
		rec.Results = &storage.ScanResults{Subdomains: []string{"api.example.com"}}
		rec.Findings = []storage.Finding{{Index: 0, Title: "x", Severity: storage.SeverityLow, Raw: "x"}}
		rec.Score = ptrTo(97)
		rec.Grade = "A+"
		rec.ProgressPct = 100
		rec.CompletedAt = &now
	}
	require.NoError(t, backend.Scans().Create(context.Background(), rec))
	return id
}

func TestResultsOnlyForCompleted(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	completed := seedScan(t, backend, storage.StatusCompleted)
	rec, err := svc.Results(ctx, completed)
	require.NoError(t, err)
	require.True(t, rec.HasResults())

	for _, status := range []storage.ScanStatus{
		storage.StatusPending, storage.StatusRunning, storage.StatusFailed, storage.StatusStopped,
	} {
		id := seedScan(t, backend, status)
		_, err := svc.Results(ctx, id)
		require.ErrorIs(t, err, ErrResultsNotReady, "status %s", status)
	}

	var notFound *storage.NotFoundError
	_, err = svc.Results(ctx, "missing")
	require.ErrorAs(t, err, &notFound)
}

func TestRestartClearsResultFields(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	id := seedScan(t, backend, storage.StatusCompleted)

	rec, err := svc.Restart(ctx, id)
	require.NoError(t, err)

	require.Equal(t, storage.StatusPending, rec.Status)
	require.Nil(t, rec.Results)
	require.Nil(t, rec.Score)
	require.Empty(t, rec.Grade)
	require.Empty(t, rec.Findings)
	require.Nil(t, rec.Process)
	require.Empty(t, rec.ErrorMessage)
	require.Zero(t, rec.ProgressPct)
	require.Nil(t, rec.StartedAt)
	require.Nil(t, rec.CompletedAt)
	require.NotNil(t, rec.QueuedAt, "restart re-enters the queue at a new queue time")
}

func TestRestartRejectsNonTerminal(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	var invalidInput *storage.InvalidInputError

	for _, status := range []storage.ScanStatus{storage.StatusPending, storage.StatusRunning} {
		id := seedScan(t, backend, status)
		_, err := svc.Restart(ctx, id)
		require.ErrorAs(t, err, &invalidInput, "status %s", status)
	}

	failed := seedScan(t, backend, storage.StatusFailed)
	rec, err := svc.Restart(ctx, failed)
	require.NoError(t, err)
	require.Equal(t, storage.StatusPending, rec.Status)
}

func TestDeleteRefusesRunning(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	running := seedScan(t, backend, storage.StatusRunning)
	err := svc.Delete(ctx, running)
	var invalidInput *storage.InvalidInputError
	require.ErrorAs(t, err, &invalidInput)

	// Still there.
	_, err = svc.Get(ctx, running)
	require.NoError(t, err)

	done := seedScan(t, backend, storage.StatusCompleted)
	require.NoError(t, svc.Delete(ctx, done))

	var notFound *storage.NotFoundError
	_, err = svc.Get(ctx, done)
	require.ErrorAs(t, err, &notFound)
}

func TestListDelegatesFilter(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	seedScan(t, backend, storage.StatusCompleted)
	seedScan(t, backend, storage.StatusPending)
	seedScan(t, backend, storage.StatusPending)

	all, err := svc.List(ctx, storage.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	pending, err := svc.List(ctx, storage.ScanFilter{Status: storage.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestStopNonRunningViaService(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	id := seedScan(t, backend, storage.StatusPending)
	stopped, err := svc.Stop(ctx, id)
	require.NoError(t, err)
	require.False(t, stopped)
}
