package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reparseCmd = &cobra.Command{
	Use:   "reparse <template>",
	Short: "Rebuild the section structure from the template's stored HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(args[0])
		if err != nil {
			return err
		}
		html, err := tpl.HTML()
		if err != nil {
			return err
		}
		cd, err := newCodec()
		if err != nil {
			return err
		}
		dropped := tpl.Restructure(cd.Reparse(context.Background(), html), logger)
		if err := tpl.Save(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(dropped) > 0 {
			fmt.Fprintf(out, "⚠ Warning: sections changed or removed: %s\n", strings.Join(dropped, ", "))
		}
		fmt.Fprintf(out, "✓ Reparsed %s: %d sections\n", tpl.Name, len(tpl.Structure.Sections))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reparseCmd)
}
