package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/sitedeploy/internal/deploy"
	"github.com/openmined/sitedeploy/internal/deploy/config"
	"github.com/openmined/sitedeploy/internal/deploy/contenttype"
	"github.com/openmined/sitedeploy/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "sitedeploy",
	Short:   "Deploy a static site to S3 + CloudFront",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			SiteDir:        viper.GetString("site_dir"),
			Bucket:         viper.GetString("bucket"),
			Region:         viper.GetString("region"),
			Endpoint:       viper.GetString("endpoint"),
			DistributionID: viper.GetString("distribution_id"),
			TextEncoding:   viper.GetString("text_encoding"),
			Prune:          viper.GetBool("prune"),
		}
		if err := viper.UnmarshalKey("rules", &cfg.Rules); err != nil {
			return fmt.Errorf("parse rules: %w", err)
		}
		if err := unmarshalInvalidation(cfg); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader()

		d, err := deploy.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return d.Deploy(cmd.Context(), dryRun)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.DetailedWithApp())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("dir", "d", "dist", "Site build output directory")
	rootCmd.Flags().StringP("bucket", "b", "", "S3 bucket to deploy to")
	rootCmd.Flags().StringP("region", "r", "us-east-1", "AWS region")
	rootCmd.Flags().String("endpoint", "", "Custom S3 endpoint (for S3-compatible stores)")
	rootCmd.Flags().String("distribution", "", "CloudFront distribution ID for invalidation")
	rootCmd.Flags().String("encoding", contenttype.DefaultEncoding, "Charset for text content types (or \"none\")")
	rootCmd.Flags().Bool("prune", false, "Delete remote objects not present locally")
	rootCmd.Flags().Bool("dry-run", false, "Print the plan without touching remote resources")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFileName, "Deploy config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("sitedeploy")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("site_dir", cmd.Flags().Lookup("dir"))
	viper.BindPFlag("bucket", cmd.Flags().Lookup("bucket"))
	viper.BindPFlag("region", cmd.Flags().Lookup("region"))
	viper.BindPFlag("endpoint", cmd.Flags().Lookup("endpoint"))
	viper.BindPFlag("distribution_id", cmd.Flags().Lookup("distribution"))
	viper.BindPFlag("text_encoding", cmd.Flags().Lookup("encoding"))
	viper.BindPFlag("prune", cmd.Flags().Lookup("prune"))

	viper.SetEnvPrefix("SITEDEPLOY")
	viper.AutomaticEnv()

	return nil
}

// unmarshalInvalidation maps the viper invalidation block onto the config,
// handling the "all" shorthand for paths.
func unmarshalInvalidation(cfg *config.Config) error {
	cfg.Invalidation.Enabled = viper.GetBool("invalidation.enabled")
	cfg.Invalidation.Wait = viper.GetBool("invalidation.wait")
	if !viper.IsSet("invalidation.paths") {
		if cfg.Invalidation.Enabled {
			cfg.Invalidation.Paths = config.AllPaths()
		}
		return nil
	}

	switch raw := viper.Get("invalidation.paths").(type) {
	case string:
		if raw != "all" {
			return fmt.Errorf("invalid invalidation.paths value %q (want \"all\" or a list)", raw)
		}
		cfg.Invalidation.Paths = config.AllPaths()
	default:
		cfg.Invalidation.Paths = config.PathList(viper.GetStringSlice("invalidation.paths")...)
	}
	return nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Println(version.ShortWithApp())
}
