package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"stream-cutter/infrastructure/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput io.Writer = os.Stdout

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration entries",
	Long: `Manage the allowed upload types and inspect the effective configuration.

Examples:
  stream-cutter config list types
  stream-cutter config add type video/x-matroska
  stream-cutter config add type .mkv
  stream-cutter config remove type audio/ogg
  stream-cutter config show`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	// Add subcommands
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configShowCmd)
}

// fileConfig loads the config file without environment overrides, so edits
// never persist values that only came from the environment
func fileConfig() (*config.Config, error) {
	fc, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfgFile, err)
	}
	return fc, nil
}

// --- ADD command ---

var configAddCmd = &cobra.Command{
	Use:   "add type <mime-type|.ext>",
	Short: "Add a new config entry",
	Long: `Add a MIME type or file extension to the upload allow-list.

Examples:
  stream-cutter config add type video/x-matroska
  stream-cutter config add type .mkv`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigAdd,
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	fc, err := fileConfig()
	if err != nil {
		return err
	}
	return RunConfigAddWithDependencies(fc, cfgFile, args[0], args[1], DefaultOutput)
}

// RunConfigAddWithDependencies runs the add command with injected dependencies
func RunConfigAddWithDependencies(cfg *config.Config, configPath, entityType, value string, out io.Writer) error {
	mgr := config.NewConfigManager(cfg, configPath)

	switch entityType {
	case "type":
		if err := mgr.AddAllowedType(value); err != nil {
			return err
		}
		entry, _ := config.NormalizeAllowedType(value)
		fmt.Fprintf(out, "Added allowed type %q\n", entry)

	default:
		return fmt.Errorf("unknown entity type %q. Use type", entityType)
	}

	return nil
}

// --- LIST command ---

var configListCmd = &cobra.Command{
	Use:   "list types",
	Short: "List config entries",
	Long: `List the upload allow-list.

Example:
  stream-cutter config list types`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigList,
}

func runConfigList(cmd *cobra.Command, args []string) error {
	fc, err := fileConfig()
	if err != nil {
		return err
	}
	return RunConfigListWithDependencies(fc, cfgFile, args[0], DefaultOutput)
}

// RunConfigListWithDependencies runs the list command with injected dependencies
func RunConfigListWithDependencies(cfg *config.Config, configPath, entityType string, out io.Writer) error {
	mgr := config.NewConfigManager(cfg, configPath)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	switch entityType {
	case "types":
		types := mgr.ListAllowedTypes()
		if len(types) == 0 {
			fmt.Fprintln(out, "No allowed types configured.")
			return nil
		}
		fmt.Fprintln(w, "ENTRY\tMATCHES")
		for _, t := range types {
			kind := "content type"
			if len(t) > 0 && t[0] == '.' {
				kind = "extension"
			}
			fmt.Fprintf(w, "%s\t%s\n", t, kind)
		}

	default:
		return fmt.Errorf("unknown entity type %q. Use types", entityType)
	}

	return w.Flush()
}

// --- REMOVE command ---

var configRemoveCmd = &cobra.Command{
	Use:   "remove type <mime-type|.ext>",
	Short: "Remove a config entry",
	Long: `Remove a MIME type or file extension from the upload allow-list.

Example:
  stream-cutter config remove type audio/ogg`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigRemove,
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	fc, err := fileConfig()
	if err != nil {
		return err
	}
	return RunConfigRemoveWithDependencies(fc, cfgFile, args[0], args[1], DefaultOutput)
}

// RunConfigRemoveWithDependencies runs the remove command with injected dependencies
func RunConfigRemoveWithDependencies(cfg *config.Config, configPath, entityType, value string, out io.Writer) error {
	mgr := config.NewConfigManager(cfg, configPath)

	switch entityType {
	case "type":
		if err := mgr.RemoveAllowedType(value); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed allowed type %q\n", value)

	default:
		return fmt.Errorf("unknown entity type %q. Use type", entityType)
	}

	return nil
}

// --- SHOW command ---

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and STREAMCUTTER_* environment
overrides have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded: %v", cfgErr)
	}
	return RunConfigShowWithDependencies(cfg, DefaultOutput)
}

// RunConfigShowWithDependencies prints cfg as YAML followed by any warnings
func RunConfigShowWithDependencies(cfg *config.Config, out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "\n# invalid: %v\n", err)
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(out, "# warning: %s\n", w)
	}
	return nil
}
