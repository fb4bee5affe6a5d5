package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vantalabs/vantage/config"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vantage configuration",
	Long: `Display and manage vantage configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (VANTAGE_* prefix)
2. Project config (./vantage.toml, searches up directories)
3. User config (~/.vantage/vantage.toml)
4. System config (/etc/vantage/config.toml)
5. Default values

Examples:
  vantage config show                  # Show current configuration
  vantage config show --format json    # Show configuration in JSON format
  vantage config get cache.default_ttl_seconds
  vantage config where                 # Show the configuration cascade`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current vantage configuration merged from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., cache.default_ttl_seconds, fetch.health_threshold)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long:  "List the configuration cascade in precedence order, showing which files exist.",
	RunE:  runConfigWhere,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# vantage configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# vantage configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if _, err := config.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	v := config.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	fmt.Println(v.Get(key))
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration cascade (later overrides earlier):")
	fmt.Println("  1. [DEFAULT]  Built-in defaults")
	fmt.Println("  2. [SYSTEM]   /etc/vantage/config.toml")
	fmt.Println("  3. [USER]     ~/.vantage/vantage.toml")
	fmt.Println("  4. [PROJECT]  ./vantage.toml (searches up directories)")
	fmt.Println("  5. [ENV]      VANTAGE_* environment variables")
	fmt.Println()

	home, _ := os.UserHomeDir()
	candidates := []string{
		"/etc/vantage/config.toml",
		filepath.Join(home, ".vantage", "vantage.toml"),
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "vantage.toml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("  present: %s\n", path)
		} else {
			fmt.Printf("  missing: %s\n", path)
		}
	}
	return nil
}
