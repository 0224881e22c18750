package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/docshape-cli/internal/config"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file, templates directory and configuration store",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			dir, err := cfgpkg.Dir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, "config.yaml")
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := cfgpkg.Save(c, cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written: %s\n", path)
		}
		if err := utils.EnsureDir(c.TemplatesDir); err != nil {
			return fmt.Errorf("create templates dir: %w", err)
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		if err := s.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Store ready: %s\n", c.StorePath)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Templates directory: %s\n", c.TemplatesDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
