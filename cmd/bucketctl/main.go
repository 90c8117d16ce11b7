package main

import (
	"fmt"
	"os"

	"github.com/hyphanet/support/pkg/rlog"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bucketctl",
	Short: "bucketctl exercises the temp-storage engine's factories and persistent manager",
	Long: `bucketctl is a manual smoke-test tool over the I/O support layer:
it drives the bucket factory through the RAM-capability gate and
high-water check, and drives the persistent temp manager through its
resume and delayed-dispose lifecycle, all from the command line.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(factoryDemoCmd)
	rootCmd.AddCommand(persistDemoCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	rlog.Init(rlog.Config{
		Level:      rlog.Level(level),
		JSONOutput: jsonOut,
	})
}
