// Package cmd defines and implements the CLI commands for the site tooling
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/app"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/config"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/logging"
	pkgconfig "github.com/oracle/content-and-experience-toolkit-sub002/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows us to
// inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
}

// newApp is the application factory. It's a variable so we can replace it
// with a mock factory in tests.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitetool",
		Short: "Index and site-map tooling for remote-hosted sites.",
		Long: `sitetool drives a remote content-management service: it crawls a
site's structure and content, derives one searchable index record per page,
reconciles those records against the remote index, and optionally publishes
the result. A sibling command generates the site's sitemap.xml.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs AFTER config is loaded but BEFORE the subcommand's RunE:
		// build the application and inject it into the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(func() { pkgconfig.InitConfig(cfgFile) })

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.siteindex/config.yaml)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSitemapCmd())

	return cmd
}

// Execute is the main entry point. Expected failures are reported as a single
// ERROR: line and a non-zero exit.
func Execute() {
	logging.InitLogger(false)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// describeError maps pipeline errors onto the terse user-facing messages the
// CLI promises for expected failure cases.
func describeError(err error, site string) error {
	switch {
	case errors.Is(err, cms.ErrSiteNotFound):
		return fmt.Errorf("site %s does not exist", site)
	case errors.Is(err, cms.ErrNoPages):
		return fmt.Errorf("site %s has no pages", site)
	default:
		return err
	}
}
