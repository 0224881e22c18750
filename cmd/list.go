package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/template"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		tpls, err := template.List(c.TemplatesDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(tpls) == 0 {
			fmt.Fprintln(out, "(no templates)")
			return nil
		}
		t := newTable(out, "Name", "Title", "Sections", "Tables", "Strategy", "Updated")
		for _, tpl := range tpls {
			var title, strategy string
			var secs, tables int
			if s := tpl.Structure; s != nil {
				title, strategy = s.Title, s.Metadata.ParseStrategy
				secs, tables = s.Metadata.TotalSections, s.Metadata.TotalTables
			}
			t.AppendRow([]any{tpl.Name, truncate(title, 30), secs, tables, strategy, tpl.UpdatedAt.Format("2006-01-02 15:04")})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
