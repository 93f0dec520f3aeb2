package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/pkg/sqlite"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize metafields configuration and storage",
		Long: "Create the configuration directory with config.yaml and an empty schemas.yaml,\n" +
			"then initialize the sqlite data directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	configDir, err := a.resolveConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysError("create config directory: %w", err)
	}

	initial := configFile{
		Backend:     types.BackendSQLite,
		DataDir:     a.dataDirFlag,
		SchemaFiles: []string{schemaFileExt},
	}
	if err := writeConfig(filepath.Join(configDir, configFileExt), initial); err != nil {
		return sysError("write config: %w", err)
	}
	if err := writeIfMissing(filepath.Join(configDir, schemaFileExt), []byte(defaultSchemasYAML)); err != nil {
		return sysError("write schemas: %w", err)
	}

	if err := a.load(cmd); err != nil {
		return err
	}
	if a.cfg.Backend == types.BackendSQLite {
		backend := sqlite.NewBackend(a.logger)
		if err := backend.Attach(a.cfg); err != nil {
			return sysError("initialize storage: %w", err)
		}
		if err := backend.Detach(); err != nil {
			return sysError("finalize storage: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "metafields initialized in %s\n", configDir)
	return nil
}
