package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, show or validate configuration",
	Long: `Manage tickerdesk configuration files.

Subcommands:
  init     - Write the default configuration as TOML
  show     - Print the effective configuration with secrets redacted
  validate - Load and validate a configuration file

Examples:
  tickerdesk config init -o config.toml
  tickerdesk config validate --config config.toml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "", "output file (stdout when empty)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()
	if configInitOutput == "" {
		return encodeTOML(cmd.OutOrStdout(), cfg)
	}

	f, err := os.OpenFile(configInitOutput, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := encodeTOML(f, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configInitOutput)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return encodeTOML(cmd.OutOrStdout(), config.RedactedConfig(cfg))
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (mode=%s, journal=%s)\n", cfg.Mode, cfg.Journal.Driver)
	return nil
}

func encodeTOML(w io.Writer, cfg config.Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
