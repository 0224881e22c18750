package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/template"
)

var (
	importName  string
	importDesc  string
	importForce bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a .docx (or exported .html) document as a template",
	Example: `  docshape import report.docx
  docshape import report.docx --name q3-audit --desc "Q3 audit report"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		c, err := config()
		if err != nil {
			return err
		}
		name := importName
		if name == "" {
			base := filepath.Base(file)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		dir, err := template.Dir(c.TemplatesDir, name)
		if err != nil {
			return err
		}
		existing, err := template.Load(dir)
		if err == nil && !importForce {
			return fmt.Errorf("template %q already exists (use --force to replace it)", name)
		}

		cd, err := newCodec()
		if err != nil {
			return err
		}
		imp, err := cd.Import(context.Background(), file)
		if err != nil {
			return err
		}

		tpl := template.New(name, importDesc, dir)
		if existing != nil {
			tpl.ID = existing.ID
			tpl.CreatedAt = existing.CreatedAt
			if importDesc == "" {
				tpl.Description = existing.Description
			}
		}
		if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
		tpl.SourceFile = file
		tpl.Structure = imp.Structure
		tpl.Warnings = imp.Warnings
		if err := tpl.SetHTML(imp.HTML); err != nil {
			return err
		}
		if err := tpl.Save(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, w := range imp.Warnings {
			fmt.Fprintf(out, "⚠ Warning: %s\n", w)
		}
		m := imp.Structure.Metadata
		fmt.Fprintf(out, "✓ Template imported: %s (%d sections, %d with tables, strategy %s)\n",
			name, m.TotalSections, m.TotalTables, m.ParseStrategy)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "template name (default: file name)")
	importCmd.Flags().StringVar(&importDesc, "desc", "", "template description")
	importCmd.Flags().BoolVar(&importForce, "force", false, "replace an existing template")
}
