package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/codec"
	"github.com/KaramelBytes/docshape-cli/internal/substitute"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

var (
	exportOutput     string
	exportHTMLOutput string
	exportUser       string
	exportDepartment string
	exportNoMock     bool
)

var exportCmd = &cobra.Command{
	Use:   "export <template>",
	Short: "Fill placeholders from configured datasets and write a .docx",
	Example: `  docshape export q3-audit -o q3-audit.docx
  docshape export q3-audit -o out.docx --html-out out.html --user alice --no-mock`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOutput == "" {
			return fmt.Errorf("--output is required")
		}
		c, err := config()
		if err != nil {
			return err
		}
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		html, err := tpl.HTML()
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		engine := newEngine(c, s)
		if exportNoMock {
			engine.MockFallback = false
		}
		cd := codec.New(engine, codecOptions(c))
		vars := substitute.Vars{
			CurrentUser:   firstNonEmpty(exportUser, c.CurrentUser),
			Department:    firstNonEmpty(exportDepartment, c.Department),
			SystemVersion: c.SystemVersion,
			TemplateID:    tpl.ID,
		}
		res, err := cd.Export(context.Background(), html, vars)
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(filepath.Dir(exportOutput)); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := utils.SafeWriteFile(exportOutput, res.Docx); err != nil {
			return err
		}
		if exportHTMLOutput != "" {
			if err := os.WriteFile(exportHTMLOutput, []byte(res.Result.HTML), 0o644); err != nil {
				return fmt.Errorf("write html: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if len(res.Result.Mocked) > 0 {
			fmt.Fprintf(out, "⚠ Warning: sample data used for: %s\n", strings.Join(res.Result.Mocked, ", "))
		}
		for _, e := range res.Result.Errors {
			fmt.Fprintf(out, "⚠ Warning: %s\n", e)
		}
		fmt.Fprintf(out, "✓ Exported %s to %s\n", tpl.Name, exportOutput)
		return nil
	},
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output .docx path")
	exportCmd.Flags().StringVar(&exportHTMLOutput, "html-out", "", "also write the substituted HTML")
	exportCmd.Flags().StringVar(&exportUser, "user", "", "value for the CURRENT_USER system field")
	exportCmd.Flags().StringVar(&exportDepartment, "department", "", "value for the DEPARTMENT system field")
	exportCmd.Flags().BoolVar(&exportNoMock, "no-mock", false, "render query failures as errors instead of sample data")
}
