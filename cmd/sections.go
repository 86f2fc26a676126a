package cmd

import (
	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Print the sections that would be crawled",

	RunE: func(cmd *cobra.Command, args []string) error {
		sections, err := config.LoadSections(viper.GetString("sections-file"))
		if err != nil {
			return err
		}
		sections, err = config.Filter(sections, viper.GetStringSlice("only"))
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Section", "Tables", "Views"})
		for _, s := range sections {
			t.AppendRow(table.Row{s.Name, dash(s.Tables), dash(s.Views)})
		}
		t.AppendFooter(table.Row{"", "", len(sections)})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
