package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"seatwatch/lib/restyutil"
	"seatwatch/lib/scrapers/dalonline"
	"seatwatch/lib/serviceutil"
	"seatwatch/lib/telemetry"
	"seatwatch/services/seatwatch"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpHttp   string

	cfg config
)

var rootCmd = &cobra.Command{
	Use:   "seatwatch",
	Short: "seatwatch watches a DalOnline course for open seats, emails you and can register for you.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		err := telemetry.SetupFromEnv(cmd.Context(), "seatwatch")
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no telemetry.json5 found, telemetry disabled")
		} else if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		}

		cfg, err = loadConfig(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file, defaults to the nearest seatwatch.json5")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&dumpHttp, "dump-http", "", "write every http exchange with the timetable to this directory")
}

func addCourseFlags(cmd *cobra.Command) {
	cmd.Flags().String("course", "", "course number, e.g. 3136")
	cmd.Flags().String("term", "", "term code, e.g. 202010 for fall 2019 or 202020 for winter 2020")
}

// applyCourseFlags lets flags that were set win over the config file.
func applyCourseFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("course") {
		cfg.Course, _ = cmd.Flags().GetString("course")
	}
	if cmd.Flags().Changed("term") {
		cfg.Term, _ = cmd.Flags().GetString("term")
	}
}

func newClient() (*dalonline.Client, error) {
	opts := dalonline.ClientOptions{
		Timeout: time.Duration(cfg.Timeout) * time.Second,
	}
	if dumpHttp != "" {
		output, err := restyutil.NewFilesystemOutput(dumpHttp)
		if err != nil {
			return nil, err
		}
		opts.Output = output
	}
	return dalonline.NewClient(opts), nil
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	err := telemetry.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

// fail prints what the user should do about err and exits.
func fail(message string, err error) {
	shutdownTelemetry()
	fmt.Fprintln(os.Stderr, seatwatch.Classify(err).Advice())
	serviceutil.Fatal(message, err)
}

func Execute() {
	err := rootCmd.ExecuteContext(serviceutil.SignalContext())
	if err != nil {
		os.Exit(1)
	}
}
