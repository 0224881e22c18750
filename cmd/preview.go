package cmd

import (
	"context"
	"fmt"
	stdhtml "html"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/codec"
	"github.com/KaramelBytes/docshape-cli/internal/substitute"
)

var (
	previewSubstitute bool
	previewSection    string
)

var previewCmd = &cobra.Command{
	Use:   "preview <template>",
	Short: "Print a template (or one section) as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		if previewSection != "" {
			sec, ok := tpl.SectionByID(previewSection)
			if !ok {
				return fmt.Errorf("section %s not found in %s", previewSection, tpl.Name)
			}
			level := min(max(sec.Level, 1), 6)
			html = fmt.Sprintf("<h%d>%s</h%d>%s", level, stdhtml.EscapeString(sec.Title), level, sec.OriginalHTML)
		}

		cd := codec.New(nil, codecOptions(c))
		if previewSubstitute {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			cd = codec.New(newEngine(c, s), codecOptions(c))
		}
		res, err := cd.Substitute(context.Background(), html, substitute.Vars{
			CurrentUser:   c.CurrentUser,
			Department:    c.Department,
			SystemVersion: c.SystemVersion,
			TemplateID:    tpl.ID,
		})
		if err != nil {
			return err
		}
		md, err := cd.Markdown(res.HTML)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().BoolVar(&previewSubstitute, "substitute", false, "fill placeholders before printing")
	previewCmd.Flags().StringVarP(&previewSection, "section", "s", "", "preview a single section")
}
