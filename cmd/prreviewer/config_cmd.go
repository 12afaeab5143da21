package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/wesm/prreviewer/internal/config"
)

// localConfigPath returns the repo-local config path relative to the
// current directory, mirroring config.LoadRepoConfig's own path.
func localConfigPath() string {
	return filepath.Join(".", ".prreviewer.toml")
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get and set prreviewer configuration",
		Long:  "Inspect or modify prreviewer configuration values. Similar to git config.",
	}

	cmd.AddCommand(configGetCmd())
	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configListCmd())

	return cmd
}

func configGetCmd() *cobra.Command {
	var globalFlag bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			if !globalFlag {
				if repoCfg, err := config.LoadRepoConfig("."); err == nil && repoCfg != nil {
					if config.IsConfigValueSet(repoCfg, key) {
						val, err := config.GetConfigValue(repoCfg, key)
						if err != nil {
							return err
						}
						fmt.Println(val)
						return nil
					}
				}
			}

			cfg, err := config.LoadGlobal()
			if err != nil {
				return fmt.Errorf("load global config: %w", err)
			}
			val, err := config.GetConfigValue(cfg, key)
			if err != nil {
				return err
			}
			if !config.IsConfigValueSet(cfg, key) {
				return fmt.Errorf("key %q is not set", key)
			}
			fmt.Println(val)
			return nil
		},
	}

	cmd.Flags().BoolVar(&globalFlag, "global", false, "get from global config only, skipping .prreviewer.toml")

	return cmd
}

func configSetCmd() *cobra.Command {
	var localFlag bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			if localFlag {
				repoCfg, err := config.LoadRepoConfig(".")
				if err != nil {
					return fmt.Errorf("load repo config: %w", err)
				}
				if repoCfg == nil {
					repoCfg = &config.RepoConfig{}
				}
				if err := config.SetConfigValue(repoCfg, key, value); err != nil {
					return err
				}
				return writeRepoConfig(repoCfg)
			}

			cfg, err := config.LoadGlobal()
			if err != nil {
				return fmt.Errorf("load global config: %w", err)
			}
			if err := config.SetConfigValue(cfg, key, value); err != nil {
				return err
			}
			return config.SaveGlobal(cfg)
		},
	}

	cmd.Flags().BoolVar(&localFlag, "local", false, "set in .prreviewer.toml instead of the global config")

	return cmd
}

func configListCmd() *cobra.Command {
	var showOrigin bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List effective configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGlobal()
			if err != nil {
				return fmt.Errorf("load global config: %w", err)
			}
			repoCfg, _ := config.LoadRepoConfig(".")
			rawGlobal, _ := config.LoadRawGlobal()
			rawRepo, _ := config.LoadRawRepo(".")

			kvos := config.MergedConfigWithOrigin(cfg, repoCfg, rawGlobal, rawRepo)

			if showOrigin {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, kvo := range kvos {
					fmt.Fprintf(w, "%s\t%s\t%s\n", kvo.Origin, kvo.Key, maskedValue(kvo.Key, kvo.Value))
				}
				return w.Flush()
			}

			for _, kvo := range kvos {
				fmt.Printf("%s=%s\n", kvo.Key, maskedValue(kvo.Key, kvo.Value))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showOrigin, "show-origin", false, "show where each value comes from (global/local/default)")

	return cmd
}

func maskedValue(key, value string) string {
	if config.IsSensitiveKey(key) {
		return config.MaskValue(value)
	}
	return value
}

func writeRepoConfig(cfg *config.RepoConfig) error {
	path := localConfigPath()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
