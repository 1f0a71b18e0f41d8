package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"arboreal/harvest/internal/arboreal"
	"arboreal/harvest/internal/blob"
	s3store "arboreal/harvest/internal/blob/s3"
	"arboreal/harvest/internal/config"
	"arboreal/harvest/internal/db"
)

var cfgFile string

// cfg is resolved by the root PersistentPreRunE before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "harvest",
	Short:         "Download Arboreal forestry samples as CSV datasets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c
		logger := config.NewLogger(cmd.ErrOrStderr(), c.LogFormat, c.Verbose)
		if c.File != "" {
			logger.Debug("config loaded", slog.String("file", c.File))
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(config.WithLogger(ctx, logger))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to "+config.FileName)
	pf.String("api-key", "", `Arboreal API key, "Key <token>"`)
	pf.String("base-url", "", "Arboreal API base URL")
	pf.Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	pf.BoolP("verbose", "v", false, "Debug logging")
	pf.String("log-format", config.DefaultLogFormat, "Log format: text or json")
}

// newClient builds the Arboreal client from the resolved config. The key is
// validated first so a malformed key fails before any request.
func newClient(ctx context.Context) (*arboreal.Client, error) {
	if err := arboreal.ValidateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	return arboreal.New(cfg.BaseURL, cfg.APIKey,
		arboreal.WithTimeout(cfg.Timeout),
		arboreal.WithLogger(config.GetLogger(ctx)),
	), nil
}

// openStore connects to the configured archive bucket. Tests replace it.
var openStore = func(ctx context.Context, c config.S3Config) (blob.Store, error) {
	return s3store.New(ctx, s3store.Config{
		Region:    c.Region,
		Bucket:    c.Bucket,
		Endpoint:  c.Endpoint,
		PathStyle: c.PathStyle,
	})
}

// openDatabase opens the SQLite file named by --sqlite or the config.
func openDatabase() (*db.DB, error) {
	if cfg.SQLite == "" {
		return nil, fmt.Errorf("no SQLite database configured (use --sqlite or set sqlite in %s)", config.FileName)
	}
	return db.OpenDB(cfg.SQLite)
}
