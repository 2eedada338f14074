package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/app"
	"github.com/JakeFAU/tagfeed-harvester/internal/config"
	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
	"github.com/JakeFAU/tagfeed-harvester/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	IndexSize() int
	FollowedTags(ctx context.Context) ([]string, error)
	ResolveTags(ctx context.Context, explicit []string, all bool) ([]string, error)
	Run(ctx context.Context, tags []string) (crawler.SessionReport, error)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newLogger builds the process logger from the loaded configuration.
var newLogger = func(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Incrementally harvests tag feeds into a local markdown tree.",
		Long: `harvester walks the feed of one or more tags page by page, keeps the
documents whose engagement clears a threshold, and writes each one as
markdown (with its images) under the output root. Documents already present
in the output tree are never fetched again.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Flags are parsed by now, so subcommand overrides can be folded into
		// the configuration before any service is built.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := applyFlagOverrides(cmd, &cfg); err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().String("output", "", "output root (overrides output.root)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newTagsCmd())
	cmd.AddCommand(newIndexCmd())

	return cmd
}

// applyFlagOverrides folds explicitly set subcommand flags into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("tag") {
		tags, err := flags.GetStringSlice("tag")
		if err != nil {
			return fmt.Errorf("read --tag: %w", err)
		}
		cfg.Crawl.Tags = config.CleanTags(tags)
	}
	if flags.Changed("all") {
		all, err := flags.GetBool("all")
		if err != nil {
			return fmt.Errorf("read --all: %w", err)
		}
		cfg.Crawl.AllTags = all
	}
	if flags.Changed("min-engagement") {
		n, err := flags.GetInt("min-engagement")
		if err != nil {
			return fmt.Errorf("read --min-engagement: %w", err)
		}
		cfg.Crawl.MinEngagement = n
	}
	if flags.Changed("output") {
		root, err := flags.GetString("output")
		if err != nil {
			return fmt.Errorf("read --output: %w", err)
		}
		cfg.Output.Root = root
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// withApp adapts fn into a RunE that resolves the App from the command context
// and closes it once fn returns, whether or not fn failed.
func withApp(fn func(cmd *cobra.Command, appInstance App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		return fn(cmd, appInstance)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "harvester:", err)
		os.Exit(1)
	}
}
