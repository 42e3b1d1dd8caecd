package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/i474232898/look-pyrenees/internal/config"
	"github.com/i474232898/look-pyrenees/internal/logger"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var (
	cfg *config.AppConfig
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "look-pyrenees",
	Short: "Download and crop the latest Sentinel-2 images of Pyrenees zones",
	Long: `look-pyrenees finds the most recent, least cloudy Sentinel-2 products
covering a set of Pyrenees zones, crops them to each zone and keeps the
results for 31 days, locally and optionally in a bucket.

Common workflows:

  Process every zone once:
    look-pyrenees run

  Process one zone with Earth Search and upload to a bucket:
    look-pyrenees run -z orlu -p earth_search -b my-bucket

  Run on a schedule and expose the HTTP API:
    look-pyrenees serve

Configuration is read from the environment and from a .env file, see
OUT_PATH, PREF_PROVIDER, BUCKET_NAME, CDSE_USERNAME and CDSE_PASSWORD.
Flags override the environment.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate("Look Pyrenees version : {{.Version}}\n")

	f := rootCmd.PersistentFlags()
	f.StringP("out-path", "o", "./data", "output directory for the cropped images")
	f.StringP("pref-provider", "p", "cop_dataspace", "preferred provider (cop_dataspace, earth_search)")
	f.StringP("bucket-name", "b", "", "bucket receiving the PNG renditions")
	f.BoolP("verbose", "v", false, "set log level to info")
	f.Bool("very-verbose", false, "set log level to debug")
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, c); err != nil {
		return err
	}

	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	cfg = c
	log = logger.New(level, c.LogFormat)
	slog.SetDefault(log)
	return nil
}

// applyFlags overrides c with the flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.AppConfig) error {
	flags := cmd.Flags()

	if flags.Changed("out-path") {
		c.OutPath, _ = flags.GetString("out-path")
	}
	if flags.Changed("pref-provider") {
		c.PreferredProvider, _ = flags.GetString("pref-provider")
	}
	if flags.Changed("bucket-name") {
		c.BucketName, _ = flags.GetString("bucket-name")
	}
	if f := flags.Lookup("show-results"); f != nil && f.Changed {
		c.ShowResults, _ = flags.GetBool("show-results")
	}
	if v, _ := flags.GetBool("verbose"); v {
		c.LogLevel = "info"
	}
	if vv, _ := flags.GetBool("very-verbose"); vv {
		c.LogLevel = "debug"
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}
