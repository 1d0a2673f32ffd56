package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/okelo/stele/internal/config"
	"github.com/okelo/stele/internal/engine"
	"github.com/okelo/stele/internal/filestore"
	"github.com/okelo/stele/internal/process"
	"github.com/okelo/stele/internal/runtime"
	logpkg "github.com/okelo/stele/pkg/log"
)

// NewRoot constructs the stele command tree.
func NewRoot(logger logpkg.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "stele",
		Short: "Stele persistent process store CLI",
		Long:  "Stele stores a process as an append-only composition log and restores it by replay. This CLI operates directly on a store's data directory.",
	}
	root.PersistentFlags().String("config", "", "Config file (JSON or YAML)")
	root.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	root.PersistentFlags().String("backend", "", "Store backend: fs|memory|pebble")
	root.PersistentFlags().String("fsync", "", "Fsync mode: always|interval|never")

	root.AddCommand(NewVerifyCommand(logger))
	root.AddCommand(NewInspectCommand(logger))
	root.AddCommand(NewReduceCommand(logger))
	root.AddCommand(NewTruncateCommand(logger))
	root.AddCommand(NewStoreCommand(logger))
	return root
}

func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	return cfg, cfg.Validate()
}

// openStore opens the configured backend. The returned close func is
// always safe to call.
func openStore(cmd *cobra.Command, logger logpkg.Logger) (filestore.Store, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, func() {}, err
	}
	files, db, err := runtime.OpenStore(cfg, logger)
	if err != nil {
		return nil, func() {}, err
	}
	return files, func() {
		if db != nil {
			db.Close()
		}
	}, nil
}

// engineByName maps the --engine flag to a built-in engine. Commands that
// write reductions must refuse "nop": its state is not derived from the
// application, so checkpoints taken through it would poison future
// restores.
func engineByName(name string, allowNop bool) (process.Engine, error) {
	switch name {
	case "kv":
		return engine.KV{}, nil
	case "nop":
		if !allowNop {
			return nil, fmt.Errorf("engine %q cannot write reductions", name)
		}
		return engine.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q; use kv|nop", name)
	}
}
