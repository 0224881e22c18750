package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/codec"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

var (
	reportOutput     string
	reportHTMLOutput string
	reportNoMock     bool
)

var reportCmd = &cobra.Command{
	Use:   "report <template>",
	Short: "Build a section report from configured columns and write a .docx",
	Example: `  docshape column set q3-audit section_2 1 --type DYNAMIC --sql "SELECT risk_level FROM audits"
  docshape report q3-audit -o q3-report.docx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportOutput == "" {
			return fmt.Errorf("--output is required")
		}
		ctx := context.Background()
		c, err := config()
		if err != nil {
			return err
		}
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		cols, err := s.ListColumnConfigs(ctx, tpl.ID)
		if err != nil {
			return err
		}

		engine := newEngine(c, s)
		if reportNoMock {
			engine.MockFallback = false
		}
		res, err := codec.New(engine, codecOptions(c)).Report(ctx, tpl.Structure, cols)
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(filepath.Dir(reportOutput)); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := utils.SafeWriteFile(reportOutput, res.Docx); err != nil {
			return err
		}
		if reportHTMLOutput != "" {
			if err := os.WriteFile(reportHTMLOutput, []byte(res.Result.HTML), 0o644); err != nil {
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
		fmt.Fprintf(out, "✓ Report for %s written to %s (%d configured columns)\n", tpl.Name, reportOutput, len(cols))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output .docx path")
	reportCmd.Flags().StringVar(&reportHTMLOutput, "html-out", "", "also write the report HTML")
	reportCmd.Flags().BoolVar(&reportNoMock, "no-mock", false, "render query failures as errors instead of sample data")
}
