package cmd

import (
	"os"
	"seatwatch/lib/scrapers/dalonline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	addCourseFlags(checkCmd)
	checkCmd.Flags().String("header", "", "fail unless the seat column is headed by this label, e.g. Rem")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetches the timetable once and prints the seat count.",
	Run: func(cmd *cobra.Command, args []string) {
		applyCourseFlags(cmd)

		query, err := cfg.query()
		if err != nil {
			fail("invalid configuration", err)
		}
		client, err := newClient()
		if err != nil {
			fail("failed to create http dump directory", err)
		}

		var validate dalonline.CellValidator
		header, _ := cmd.Flags().GetString("header")
		if header != "" {
			validate = dalonline.RequireColumnHeader(header)
		}

		doc, err := client.FetchSchedule(cmd.Context(), query)
		if err != nil {
			fail("failed to fetch timetable", err)
		}
		seats, err := dalonline.NewSeatExtractor(validate).Extract(doc)
		if err != nil {
			fail("failed to read seat count", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Course", "Term", "Seats", "URL"})
		t.AppendRow(table.Row{query.Code(), query.Term(), seats, query.URL()})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
