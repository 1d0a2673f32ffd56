package admin

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okelo/stele/internal/inspect"
	logpkg "github.com/okelo/stele/pkg/log"
)

// NewInspectCommand builds "stele inspect": CEL-filtered record listing,
// newest first, one JSON object per line.
func NewInspectCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List composition records",
		Long:  `Enumerates composition records newest-first. --filter takes a CEL expression over kind, hash, parentHash, segment, size, text, and json, e.g. 'kind == "setState"' or 'text.contains("abc")'.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			filter, err := inspect.NewFilter(expr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			files, closeStore, err := openStore(cmd, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := inspect.Scan(files, filter, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				b, err := json.Marshal(e)
				if err != nil {
					return err
				}
				fmt.Println(string(b))
			}
			return nil
		},
	}
	cmd.Flags().String("filter", "", "CEL filter expression")
	cmd.Flags().Int("limit", 0, "Maximum records to list (0 = all)")
	return cmd
}
