package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/render"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

var renderOutput string

var renderCmd = &cobra.Command{
	Use:   "render <file.html>",
	Short: "Convert an HTML file to .docx without substitution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderOutput == "" {
			return fmt.Errorf("--output is required")
		}
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		data, err := render.Render(string(src))
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(filepath.Dir(renderOutput)); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := utils.SafeWriteFile(renderOutput, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Rendered %s\n", renderOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output .docx path")
}
