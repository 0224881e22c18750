package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/sections"
)

var (
	sectionsFormat string
	sectionsID     string
)

var sectionsCmd = &cobra.Command{
	Use:   "sections <template>",
	Short: "Show the inferred section structure of a template",
	Example: `  docshape sections q3-audit
  docshape sections q3-audit --format json
  docshape sections q3-audit --section section_2 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		if tpl.Structure == nil {
			return fmt.Errorf("template %s has no structure; run reparse", tpl.Name)
		}
		out := cmd.OutOrStdout()
		if sectionsID != "" {
			sec, ok := tpl.SectionByID(sectionsID)
			if !ok {
				return fmt.Errorf("section %s not found in %s", sectionsID, tpl.Name)
			}
			if sectionsFormat == "table" {
				return printSections(cmd, []sections.Section{*sec})
			}
			return writeStructured(out, sectionsFormat, sec)
		}
		if sectionsFormat != "table" {
			return writeStructured(out, sectionsFormat, tpl.Structure)
		}
		fmt.Fprintf(out, "%s\n", tpl.Structure.Title)
		return printSections(cmd, tpl.Structure.Sections)
	},
}

func printSections(cmd *cobra.Command, secs []sections.Section) error {
	t := newTable(cmd.OutOrStdout(), "ID", "Level", "Title", "Type", "Table", "Confidence", "Fields")
	for _, s := range secs {
		tableType, confidence := "-", "-"
		if s.HasTable && s.TableStructure != nil {
			tableType = s.TableStructure.TableType
			confidence = fmt.Sprintf("%.2f", s.TableStructure.Confidence)
		}
		t.AppendRow([]any{s.ID, s.Level, truncate(s.Title, 40), s.Type, tableType, confidence, len(s.Fields)})
	}
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(sectionsCmd)
	sectionsCmd.Flags().StringVarP(&sectionsFormat, "format", "f", "table", "output format: table|json|yaml")
	sectionsCmd.Flags().StringVarP(&sectionsID, "section", "s", "", "show a single section")
}
