package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/analysis"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

var (
	colType   string
	colValue  string
	colSQL    string
	colSource string
	colFormat string
)

var columnCmd = &cobra.Command{
	Use:   "column",
	Short: "Configure how section report columns are filled",
}

var columnSetCmd = &cobra.Command{
	Use:   "set <template> <section-id> <index>",
	Short: "Configure one column of a section (index 0 for text sections)",
	Example: `  docshape column set q3-audit section_2 0 --type FIXED --value 信息安全部
  docshape column set q3-audit section_2 1 --type DYNAMIC --sql "SELECT risk_level FROM audits" --source pg-main
  docshape column set q3-audit section_0 0 --type MANUAL`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		sec, ok := tpl.SectionByID(args[1])
		if !ok {
			return fmt.Errorf("section %s not found in %s", args[1], tpl.Name)
		}
		idx, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid column index %q", args[2])
		}
		if width := columnWidth(sec.HasTable, sec.TableStructure); idx >= width {
			return fmt.Errorf("column %d out of range: section %s has %d column(s)", idx, sec.ID, width)
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		cc := &store.ColumnConfig{
			TemplateID:   tpl.ID,
			SectionID:    sec.ID,
			Index:        idx,
			DataType:     strings.ToUpper(colType),
			Value:        colValue,
			SQLQuery:     colSQL,
			DataSourceID: colSource,
		}
		if err := s.PutColumnConfig(context.Background(), cc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Column %d of %s configured (%s)\n", idx, sec.Title, cc.DataType)
		return nil
	},
}

var columnListCmd = &cobra.Command{
	Use:   "list <template>",
	Short: "List configured columns of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		list, err := s.ListColumnConfigs(context.Background(), tpl.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if colFormat != "table" {
			return writeStructured(out, colFormat, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "(no configured columns)")
			return nil
		}
		t := newTable(out, "Section", "Index", "Header", "Type", "Value", "SQL")
		for _, c := range list {
			header := ""
			if sec, ok := tpl.SectionByID(c.SectionID); ok && sec.TableStructure != nil && c.Index < len(sec.TableStructure.Headers) {
				header = headerLabel(sec.TableStructure.Headers[c.Index])
			}
			t.AppendRow([]any{c.SectionID, c.Index, header, c.DataType, truncate(c.Value, 20), truncate(c.SQLQuery, 30)})
		}
		t.Render()
		return nil
	},
}

var columnRmCmd = &cobra.Command{
	Use:   "rm <template> <section-id> <index>",
	Short: "Remove a column configuration",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		idx, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid column index %q", args[2])
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		key := store.ColumnKey{TemplateID: tpl.ID, SectionID: args[1], Index: idx}
		if err := s.DeleteColumnConfig(context.Background(), key); err != nil {
			return fmt.Errorf("column %s/%d: %w", args[1], idx, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Column %d of %s removed\n", idx, args[1])
		return nil
	},
}

// columnWidth is the number of configurable columns of a section.
func columnWidth(hasTable bool, ts *analysis.TableStructure) int {
	if !hasTable || ts == nil || len(ts.Headers) == 0 {
		return 1
	}
	return len(ts.Headers)
}

func headerLabel(h analysis.Header) string {
	if p := h.Parent(); p != "" {
		return p + " / " + h.Name
	}
	return h.Name
}

func init() {
	rootCmd.AddCommand(columnCmd)
	columnCmd.AddCommand(columnSetCmd, columnListCmd, columnRmCmd)

	f := columnSetCmd.Flags()
	f.StringVar(&colType, "type", analysis.DataManual, "data type: FIXED|MANUAL|DYNAMIC")
	f.StringVar(&colValue, "value", "", "text for FIXED and MANUAL columns")
	f.StringVar(&colSQL, "sql", "", "query for DYNAMIC columns")
	f.StringVar(&colSource, "source", "", "data source id for --sql (default: configured default source)")

	columnListCmd.Flags().StringVarP(&colFormat, "format", "f", "table", "output format: table|json|yaml")
}
