package cmd

import (
	"os"
	"seatwatch/lib/registrar"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(locatorsCmd)
	rootCmd.AddCommand(installBrowserCmd)
}

var locatorsCmd = &cobra.Command{
	Use:   "locators",
	Short: "Prints the selectors used to drive the registration portal, config overrides included.",
	Run: func(cmd *cobra.Command, args []string) {
		locators, err := cfg.locators()
		if err != nil {
			fail("invalid locator overrides", err)
		}
		defaults := registrar.DefaultLocators()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Role", "Selector", "Indexed", "Overridden"})
		for _, role := range locators.Roles() {
			t.AppendRow(table.Row{
				role,
				locators.Selector(role),
				registrar.IsIndexed(role),
				locators.Selector(role) != defaults.Selector(role),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var installBrowserCmd = &cobra.Command{
	Use:   "install-browser",
	Short: "Downloads the browser used by register and watch --mode book.",
	Run: func(cmd *cobra.Command, args []string) {
		err := registrar.InstallBrowser()
		if err != nil {
			fail("failed to install browser", err)
		}
	},
}
