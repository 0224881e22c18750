package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/docshape-cli/internal/config"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set docshape configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "templates_dir: %s\n", c.TemplatesDir)
		fmt.Fprintf(out, "store_path: %s\n", c.StorePath)
		fmt.Fprintf(out, "batch_size: %d\n", c.BatchSize)
		fmt.Fprintf(out, "table_timeout_sec: %d\n", c.TableTimeoutSec)
		fmt.Fprintf(out, "batch_timeout_sec: %d\n", c.BatchTimeoutSec)
		fmt.Fprintf(out, "heading_table_limit: %d\n", c.HeadingTableLimit)
		fmt.Fprintf(out, "query_timeout_sec: %d\n", c.QueryTimeoutSec)
		fmt.Fprintf(out, "mock_fallback: %t\n", c.MockFallback)
		if c.CurrentUser != "" {
			fmt.Fprintf(out, "current_user: %s\n", c.CurrentUser)
		}
		if c.Department != "" {
			fmt.Fprintf(out, "department: %s\n", c.Department)
		}
		if c.SystemVersion != "" {
			fmt.Fprintf(out, "system_version: %s\n", c.SystemVersion)
		}
		if c.DefaultSourceType != "" {
			fmt.Fprintf(out, "default_source_type: %s\n", c.DefaultSourceType)
			fmt.Fprintf(out, "default_source_host: %s\n", c.DefaultSourceHost)
			fmt.Fprintf(out, "default_source_port: %d\n", c.DefaultSourcePort)
			fmt.Fprintf(out, "default_source_database: %s\n", c.DefaultSourceDatabase)
			fmt.Fprintf(out, "default_source_user: %s\n", c.DefaultSourceUser)
			fmt.Fprintf(out, "default_source_password: %s\n", mask(c.DefaultSourcePassword))
		}
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	positive := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	switch key {
	case "templates_dir":
		c.TemplatesDir = val
	case "store_path":
		c.StorePath = val
	case "batch_size":
		return positive(&c.BatchSize)
	case "table_timeout_sec":
		return positive(&c.TableTimeoutSec)
	case "batch_timeout_sec":
		return positive(&c.BatchTimeoutSec)
	case "heading_table_limit":
		return positive(&c.HeadingTableLimit)
	case "query_timeout_sec":
		return positive(&c.QueryTimeoutSec)
	case "mock_fallback":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for mock_fallback: %v", val)
		}
		c.MockFallback = b
	case "current_user":
		c.CurrentUser = val
	case "department":
		c.Department = val
	case "system_version":
		c.SystemVersion = val
	case "default_source_type":
		switch strings.ToLower(val) {
		case "", store.SourceSQLite:
			c.DefaultSourceType = strings.ToLower(val)
		case store.SourcePostgres, "postgres", "pg":
			c.DefaultSourceType = store.SourcePostgres
		default:
			return fmt.Errorf("invalid default_source_type: %s (use postgresql or sqlite)", val)
		}
	case "default_source_host":
		c.DefaultSourceHost = val
	case "default_source_port":
		return positive(&c.DefaultSourcePort)
	case "default_source_database":
		c.DefaultSourceDatabase = val
	case "default_source_user":
		c.DefaultSourceUser = val
	case "default_source_password":
		c.DefaultSourcePassword = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "text", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
