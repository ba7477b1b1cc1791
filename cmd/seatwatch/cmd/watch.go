package cmd

import (
	"fmt"
	"seatwatch/lib/mailer"
	"seatwatch/lib/telemetry"
	"seatwatch/services/seatwatch"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	addCourseFlags(watchCmd)
	watchCmd.Flags().String("mode", "", "notify to only send the email, book to also register")
	watchCmd.Flags().Int("interval", 0, "seconds to wait before each poll")
	watchCmd.Flags().String("to", "", "comma separated recipients")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Polls the course until seats open up, emails the recipients and optionally registers.",
	Run: func(cmd *cobra.Command, args []string) {
		applyCourseFlags(cmd)
		if cmd.Flags().Changed("mode") {
			cfg.Mode, _ = cmd.Flags().GetString("mode")
		}
		if cmd.Flags().Changed("interval") {
			cfg.Interval, _ = cmd.Flags().GetInt("interval")
		}
		if cmd.Flags().Changed("to") {
			to, _ := cmd.Flags().GetString("to")
			cfg.Email.To = splitList(to)
		}

		query, err := cfg.query()
		if err != nil {
			fail("invalid configuration", err)
		}
		mode, err := seatwatch.ParseMode(cfg.Mode)
		if err != nil {
			fail("invalid configuration", err)
		}
		smtp, err := cfg.smtpConfig()
		if err != nil {
			fail("failed to read smtp password", err)
		}
		client, err := newClient()
		if err != nil {
			fail("failed to create http dump directory", err)
		}

		opts := seatwatch.Options{
			Watch: seatwatch.WatchOptions{
				Query:    query,
				Fetcher:  client,
				Interval: time.Duration(cfg.Interval) * time.Second,
				Report: func(seats int) {
					fmt.Println(seats)
				},
			},
			Mode:        mode,
			Notifier:    mailer.Mailer{Transport: mailer.NewSmtpTransport(smtp)},
			From:        cfg.Email.From,
			To:          cfg.Email.To,
			Attachments: cfg.Email.Attachments,
		}
		if mode == seatwatch.ModeBook {
			// credentials are collected up front, seats can open up at
			// any hour
			opts.Registration, err = cfg.registrarOptions()
			if err != nil {
				fail("invalid registration configuration", err)
			}
			opts.Launch = cfg.launcher()
		}

		telemetry.InstrumentPerfStats(cmd.Context(), time.Second*15)

		fmt.Println("SEATS:")
		summary, err := seatwatch.Run(cmd.Context(), opts)
		if err != nil {
			fail(fmt.Sprintf("run %s failed", summary.RunId), err)
		}
		if summary.Registration != nil {
			fmt.Printf("Dropped %d and added %d course(s).\n", summary.Registration.Dropped, summary.Registration.Added)
		}
	},
}
