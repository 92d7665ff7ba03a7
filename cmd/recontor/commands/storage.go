package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recontor/recontor/pkg/storage"
)

// NewStorageCommand constructs the 'storage' command group for workspace
// maintenance.
func NewStorageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Short:   "Inspect and maintain the scan workspace",
		GroupID: "core",
	}

	cmd.AddCommand(newStorageGCCommand())

	return cmd
}

func newStorageGCCommand() *cobra.Command {
	var (
		dryRun     bool
		maxAgeDays int
		maxScans   int
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete scans that violate the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, _, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			opts := storage.GCOptions{DryRun: dryRun}
			if maxAgeDays > 0 || maxScans > 0 {
				opts.Retention = &storage.RetentionConfig{
					MaxAgeDays: maxAgeDays,
					MaxScans:   maxScans,
				}
			}

			result, err := backend.GarbageCollect(cmd.Context(), opts)
			if err != nil {
				out.Error(err)
				return err
			}

			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			out.Info(fmt.Sprintf("Garbage collection %s %d scan(s)", verb, result.ScansDeleted))
			for _, id := range result.DeletedScanIDs {
				out.Info("  " + id)
			}
			for _, gcErr := range result.Errors {
				out.Warning(gcErr.Error())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without deleting")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Override retention: delete scans older than this many days")
	cmd.Flags().IntVar(&maxScans, "max-scans", 0, "Override retention: keep at most this many scans")

	return cmd
}
