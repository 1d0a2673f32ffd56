package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okelo/stele/internal/process"
	logpkg "github.com/okelo/stele/pkg/log"
)

// NewReduceCommand builds "stele reduce": restore with a real engine and
// checkpoint the resulting state at the head.
func NewReduceCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Checkpoint the current state at the log head",
		Long:  "Restores the process with the selected engine and stores a reduction for the head record. The store must have been produced by the selected engine.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("engine")
			eng, err := engineByName(name, false)
			if err != nil {
				return err
			}
			files, closeStore, err := openStore(cmd, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			lp, err := process.Restore(files, process.Options{Engine: eng, Logger: logger})
			if err != nil {
				return err
			}
			defer lp.Dispose()
			rec, err := lp.StoreReductionForCurrentState()
			if err != nil {
				return err
			}
			fmt.Println("reduced:", rec.ReducedCompositionHashBase16)
			fmt.Println("config:", rec.AppConfigHashBase16)
			fmt.Println("state:", rec.AppStateHashBase16)
			return nil
		},
	}
	cmd.Flags().String("engine", "kv", "Execution engine: kv")
	return cmd
}

// NewTruncateCommand builds "stele truncate": checkpoint, then delete
// store files no restore will need.
func NewTruncateCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truncate",
		Short: "Drop history not needed to restore from a fresh checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("engine")
			workers, _ := cmd.Flags().GetInt("workers")
			budget, _ := cmd.Flags().GetDuration("budget")

			eng, err := engineByName(name, false)
			if err != nil {
				return err
			}
			files, closeStore, err := openStore(cmd, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			lp, err := process.Restore(files, process.Options{Engine: eng, Logger: logger})
			if err != nil {
				return err
			}
			defer lp.Dispose()
			res, err := lp.TruncateHistory(context.Background(), process.TruncateOptions{
				Workers: workers,
				Budget:  budget,
			})
			if err != nil {
				return err
			}
			fmt.Println("run:", res.RunID)
			fmt.Println("deleted:", res.Deleted)
			fmt.Println("remaining:", res.Remaining)
			if res.BudgetExhausted {
				fmt.Println("budget exhausted; rerun to finish")
			}
			return nil
		},
	}
	cmd.Flags().String("engine", "kv", "Execution engine: kv")
	cmd.Flags().Int("workers", 4, "Concurrent deletions")
	cmd.Flags().Duration("budget", 30*time.Second, "Soft wall-clock budget for deletions (0 = unlimited)")
	return cmd
}
