package root

import (
	"cmp"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/docker/mdstream/pkg/cli"
	"github.com/docker/mdstream/pkg/config"
)

func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the rendering configuration",
		Long:  "View and manage the configuration stored in ~/.config/mdstream/config.yaml",
		Example: `  # Show the effective configuration
  mdstream config show

  # Write the defaults to the config file
  mdstream config init`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShowCommand(cmd, root)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  "Display the configuration file merged with the defaults and the command line flags, in YAML format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShowCommand(cmd, root)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the path to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.NewPrinter(cmd.OutOrStdout()).Println(root.configFile())
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInitCommand(cmd, root, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.AddCommand(initCmd)

	return cmd
}

func (f *rootFlags) configFile() string {
	return cmp.Or(f.configPath, config.Path())
}

func runConfigShowCommand(cmd *cobra.Command, root *rootFlags) error {
	opts, err := root.options()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := yaml.MarshalWithOptions(opts, yaml.IndentSequence(true), yaml.UseSingleQuote(false))
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	cli.NewPrinter(cmd.OutOrStdout()).Print(string(data))
	return nil
}

func runConfigInitCommand(cmd *cobra.Command, root *rootFlags, force bool) error {
	path := root.configFile()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	cli.NewPrinter(cmd.OutOrStdout()).Printf("Wrote %s\n", path)
	return nil
}
