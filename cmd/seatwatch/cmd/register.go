package cmd

import (
	"fmt"
	"seatwatch/lib/registrar"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	registerCmd.Flags().String("term", "", "term code, e.g. 202010")
	registerCmd.Flags().String("netid", "", "NetID used to log into the portal")
	registerCmd.Flags().String("add", "", "comma separated CRNs to add, in field order")
	registerCmd.Flags().String("drop", "", "comma separated 1-based rows of the current schedule to drop")
	registerCmd.Flags().Bool("show-browser", false, "run the browser with a visible window")
	rootCmd.AddCommand(registerCmd)
}

func parseRows(s string) ([]int, error) {
	var rows []int
	for _, part := range splitList(s) {
		row, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid row %q: %w", part, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Submits the configured add/drop changes right away, without watching.",
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		if flags.Changed("term") {
			cfg.Term, _ = flags.GetString("term")
		}
		if flags.Changed("netid") {
			cfg.Registration.NetID, _ = flags.GetString("netid")
		}
		if flags.Changed("add") {
			add, _ := flags.GetString("add")
			cfg.Registration.Add = true
			cfg.Registration.CRNs = splitList(add)
		}
		if flags.Changed("drop") {
			drop, _ := flags.GetString("drop")
			rows, err := parseRows(drop)
			if err != nil {
				fail("invalid --drop", err)
			}
			cfg.Registration.Drop = true
			cfg.Registration.DropRows = rows
		}
		if show, _ := flags.GetBool("show-browser"); show {
			headless := false
			cfg.Registration.Headless = &headless
		}

		opts, err := cfg.registrarOptions()
		if err != nil {
			fail("invalid registration configuration", err)
		}

		result, err := registrar.Register(cmd.Context(), cfg.launcher(), opts)
		if err != nil {
			fail(fmt.Sprintf("registration stopped after %s", result.Reached), err)
		}
		fmt.Printf("Dropped %d and added %d course(s).\n", result.Dropped, result.Added)
	},
}
