// Handle the "bucketsum scan" command
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verityscan/bucketsum/pkg/audit"
	"github.com/verityscan/bucketsum/pkg/sidecar"
)

// Filled in by cobra argument parsing in init()
var scanCmdConfig struct {
	prefix        string
	threads       int
	maxRetries    int
	output        string
	trustETag     bool
	writeSidecars bool
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Checksum every object under a prefix",
	Long: `Lists every object under the given key prefix and computes its MD5,
emitting one "key,md5,status" line per object and a final summary. The exit
status is nonzero if any object could not be checksummed.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := scanManager.Logger
		cfg := scanManager.Cfg

		workers := scanCmdConfig.threads
		if !cmd.Flags().Changed("threads") {
			workers = cfg.GetInt("workers")
		}
		maxRetries := scanCmdConfig.maxRetries
		if !cmd.Flags().Changed("max-retries") {
			maxRetries = cfg.GetInt("maxRetries")
		}

		opts := audit.Options{
			Prefix:         scanCmdConfig.prefix,
			Workers:        workers,
			MaxAttempts:    maxRetries,
			BaseDelay:      time.Duration(cfg.GetInt("baseBackoffMs")) * time.Millisecond,
			MaxDelay:       time.Duration(cfg.GetInt("maxBackoffMs")) * time.Millisecond,
			RequestsPerSec: cfg.GetFloat64("requestsPerSec"),
			MaxInflight:    cfg.GetInt("maxInflight"),
			SkipSuffixes:   cfg.GetStringSlice("skipExtensions"),
			TrustETag:      scanCmdConfig.trustETag,
		}

		out := os.Stdout
		if scanCmdConfig.output != "" {
			f, err := os.Create(scanCmdConfig.output)
			if err != nil {
				log.Errorf("Failed to open output file: %v", err)
				os.Exit(1)
			}
			defer f.Close()
			out = f
		}

		// An interrupt lets in-flight work finish its current call, then
		// stops the lister and drains the pool.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Warn("interrupt received, finishing in-flight work")
			cancel()
		}()

		log.Infof("scanning prefix %q with %d workers", opts.Prefix, workers)
		scanner := audit.NewScanner(scanManager.Store, scanManager.Classify, log, opts)
		summary, err := scanner.Run(ctx)
		if err != nil {
			log.Errorf("scan aborted: %v", err)
			os.Exit(1)
		}

		if err := summary.WriteReport(out); err != nil {
			log.Errorf("Failed to write report: %v", err)
			os.Exit(1)
		}
		for _, res := range summary.Failures {
			log.Errorf("%s: %v", res.Key, res.Err)
		}
		log.Infof("%d objects: %d succeeded, %d failed", summary.Total, summary.Succeeded, summary.Failed)

		exitCode := 0
		if summary.Failed > 0 {
			exitCode = 1
		}

		if scanCmdConfig.writeSidecars {
			if ctx.Err() != nil {
				log.Warn("run was interrupted, skipping sidecar publishing")
			} else {
				pub := &sidecar.Publisher{
					Store: scanManager.Store,
					Retry: opts.NewPolicy(scanManager.Classify),
					Log:   log.WithField("module", "sidecar"),
				}
				stats := pub.Publish(ctx, summary.Results)
				log.Infof("sidecars: %d published, %d skipped, %d failed", stats.Published, stats.Skipped, stats.Failed)
				if stats.Failed > 0 {
					exitCode = 1
				}
			}
		}

		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanCmdConfig.prefix, "prefix", "p", "", "Key prefix to scan")
	scanCmd.Flags().IntVarP(&scanCmdConfig.threads, "threads", "t", audit.DefaultWorkers, "Number of parallel checksum workers")
	scanCmd.Flags().IntVarP(&scanCmdConfig.maxRetries, "max-retries", "r", audit.DefaultMaxAttempts, "Attempts per provider call before giving up")
	scanCmd.Flags().StringVarP(&scanCmdConfig.output, "output", "o", "", "Write report lines to this file instead of stdout")
	scanCmd.Flags().BoolVar(&scanCmdConfig.trustETag, "trust-etag", false, "Accept the provider ETag as the MD5 for single-part objects instead of downloading")
	scanCmd.Flags().BoolVar(&scanCmdConfig.writeSidecars, "write-sidecars", false, "Upload a .md5 sidecar object for every successful checksum")
}
