package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/store"
)

var (
	cellDataset     string
	cellDatasetType string
	cellDisplay     string
	cellFields      string
	cellSQL         string
	cellSource      string
	cellText        string
	cellFormat      string
)

var cellCmd = &cobra.Command{
	Use:   "cell",
	Short: "Bind template cells to datasets or static text",
}

var cellSetCmd = &cobra.Command{
	Use:   "set <template> <cell-id>",
	Short: "Configure a template cell",
	Example: `  docshape cell set q3-audit risk-list --dataset 审计数据 --fields audit_name,risk_level
  docshape cell set q3-audit owner --display text --text "安全部"`,
	Args: cobra.ExactArgs(2),
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

		cc := &store.CellConfig{
			TemplateID:   tpl.ID,
			CellID:       args[1],
			DatasetName:  cellDataset,
			DatasetType:  cellDatasetType,
			DisplayType:  cellDisplay,
			Fields:       splitList(cellFields),
			SQLQuery:     cellSQL,
			DataSourceID: cellSource,
			StaticText:   cellText,
		}
		if cc.DisplayType == "" && cc.StaticText != "" && cc.DatasetName == "" && cc.SQLQuery == "" {
			cc.DisplayType = store.DisplayText
		}
		cc.ApplyDefaults()
		if err := s.PutCellConfig(context.Background(), cc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cell %s configured on %s (%s)\n", cc.CellID, tpl.Name, cc.DisplayType)
		return nil
	},
}

var cellGetCmd = &cobra.Command{
	Use:   "get <template> <cell-id>",
	Short: "Show one cell configuration",
	Args:  cobra.ExactArgs(2),
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
		c, err := s.GetCellConfig(context.Background(), store.CellKey{TemplateID: tpl.ID, CellID: args[1]})
		if err != nil {
			return fmt.Errorf("cell %s: %w", args[1], err)
		}
		return writeStructured(cmd.OutOrStdout(), "yaml", c)
	},
}

var cellListCmd = &cobra.Command{
	Use:   "list <template>",
	Short: "List configured cells of a template",
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
		list, err := s.ListCellConfigs(context.Background(), tpl.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cellFormat != "table" {
			return writeStructured(out, cellFormat, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "(no configured cells)")
			return nil
		}
		t := newTable(out, "Cell", "Display", "Dataset", "Type", "Fields", "Text")
		for _, c := range list {
			t.AppendRow([]any{c.CellID, c.DisplayType, c.DatasetName, c.DatasetType, len(c.Fields), truncate(c.StaticText, 30)})
		}
		t.Render()
		return nil
	},
}

var cellRmCmd = &cobra.Command{
	Use:   "rm <template> <cell-id>",
	Short: "Remove a cell configuration",
	Args:  cobra.ExactArgs(2),
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
		if err := s.DeleteCellConfig(context.Background(), store.CellKey{TemplateID: tpl.ID, CellID: args[1]}); err != nil {
			return fmt.Errorf("cell %s: %w", args[1], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cell %s removed from %s\n", args[1], tpl.Name)
		return nil
	},
}

var cellDataCmd = &cobra.Command{
	Use:   "data <template> [cell-id]",
	Short: "Resolve configured cells to their data",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		engine := newEngine(c, s)
		if len(args) == 2 {
			data, err := engine.CellData(ctx, tpl.ID, args[1])
			if err != nil {
				return fmt.Errorf("cell %s: %w", args[1], err)
			}
			return writeStructured(cmd.OutOrStdout(), "json", data)
		}
		data, err := engine.TemplateData(ctx, tpl.ID)
		if err != nil {
			return err
		}
		return writeStructured(cmd.OutOrStdout(), "json", data)
	},
}

func init() {
	rootCmd.AddCommand(cellCmd)
	cellCmd.AddCommand(cellSetCmd, cellGetCmd, cellListCmd, cellRmCmd, cellDataCmd)

	f := cellSetCmd.Flags()
	f.StringVar(&cellDataset, "dataset", "", "dataset name")
	f.StringVar(&cellDatasetType, "dataset-type", "", "single|list (default list)")
	f.StringVar(&cellDisplay, "display", "", "text|dataset (default dataset)")
	f.StringVar(&cellFields, "fields", "", "comma-separated fields to display")
	f.StringVar(&cellSQL, "sql", "", "inline SQL used instead of a named dataset")
	f.StringVar(&cellSource, "source", "", "data source id for --sql")
	f.StringVar(&cellText, "text", "", "static text for text cells")

	cellListCmd.Flags().StringVarP(&cellFormat, "format", "f", "table", "output format: table|json|yaml")
}
