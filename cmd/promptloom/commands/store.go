package commands

import (
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/config"
	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/storage"
)

// openStore resolves the storage directory (flag > config) and opens the
// store.
func openStore(cmd *cobra.Command) (*storage.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	dir, _ := cmd.Root().PersistentFlags().GetString("dir")
	if dir == "" {
		dir = cfg.Storage.Dir
	}

	store, err := storage.NewStore(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open store at %s", dir)
	}
	return store, cfg, nil
}
