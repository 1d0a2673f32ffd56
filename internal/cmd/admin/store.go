package admin

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okelo/stele/internal/filestore"
	logpkg "github.com/okelo/stele/pkg/log"
)

// NewStoreCommand builds "stele store": raw file-store operations for
// migration tooling. Paths are slash-separated, e.g. components/<hash>.
func NewStoreCommand(logger logpkg.Logger) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Raw store file operations",
	}

	lsCmd := &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List store files under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix filestore.Path
			if len(args) == 1 {
				p, err := parsePath(args[0])
				if err != nil {
					return err
				}
				prefix = p
			}
			files, closeStore, err := openStore(cmd, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			paths, err := files.List(prefix)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p.String())
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Write a store file's raw bytes to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			files, closeStore, err := openStore(cmd, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			content, err := files.Get(p)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a store file",
		Long:  "Deletes one store file. Deleting composition records or referenced components breaks restores; reductions are the only files that are always safe to drop.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			files, closeStore, err := openStore(cmd, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			return files.Delete(p)
		},
	}

	storeCmd.AddCommand(lsCmd, getCmd, rmCmd)
	return storeCmd
}

func parsePath(s string) (filestore.Path, error) {
	p := filestore.Path(strings.Split(strings.Trim(s, "/"), "/"))
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", s, err)
	}
	return p, nil
}
