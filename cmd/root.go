// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/verityscan/bucketsum/pkg/scanmgr"
)

var cfgFile string
var debug bool

var scanManager *scanmgr.ScanManager

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bucketsum",
	Short: "Checksum auditing for S3-compatible buckets",
	Long: `Computes the MD5 of every object stored under a key prefix while staying
inside the storage provider's request-rate limits.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		mgrArgs := map[string]interface{}{}
		if cfgFile != "" {
			mgrArgs["config-file"] = cfgFile
		}

		logger := logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if debug {
			logger.SetLevel(logrus.DebugLevel)
		}
		mgrArgs["logger"] = logger

		var err error
		scanManager, err = scanmgr.NewManager(mgrArgs)
		if err != nil {
			fmt.Printf("Failed to initialize scan manager: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if scanManager == nil || scanManager.Logger == nil {
			fmt.Printf("%v\n", err)
		} else {
			scanManager.Logger.Error(err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/bucketsum.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}
