package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/broker"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/crawl"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/pipeline"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/progress"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/publish"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/reconcile"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/resolve"
)

// newIndexCmd creates the command that runs the full indexing pipeline for
// one site.
func newIndexCmd() *cobra.Command {
	var (
		site        string
		contentType string
		doPublish   bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Crawl a site and reconcile its page index items.",
		Long: `index crawls the named site through a local session broker, derives one
index record per page, creates or updates the corresponding items on the
remote service, and optionally publishes the result to the site's channel.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.GetLogger()
			cfg := appInstance.GetConfig()

			b, err := broker.Start(cmd.Context(), broker.Config{
				RemoteURL:       cfg.Remote.URL,
				Username:        cfg.Remote.Username,
				Password:        cfg.Remote.Password,
				Token:           cfg.Remote.Token,
				Port:            cfg.Broker.Port,
				SessionInterval: cfg.SessionInterval(),
				SessionAttempts: cfg.Poll.SessionAttempts,
			}, logger)
			if err != nil {
				return describeError(err, site)
			}
			defer b.Close()

			client := cms.NewClient(b.Addr(), logger)
			crawler := crawl.New(client, cfg.Batch.PageIDs, logger)
			resolver := resolve.New(client, cfg.Batch.ContentIDs,
				resolve.Policy(cfg.Resolve.Policy), logger)
			reconciler := reconcile.New(client, client, b, logger)
			monitor := publish.New(client, cfg.JobInterval(), logger)
			reporter := progress.NewReporter(b.RunID(),
				progress.NewConsoleSink(os.Stdout),
				progress.NewLogSink(logger),
				progress.NewPrometheusSink())

			runner := pipeline.New(crawler, resolver, client, reconciler,
				monitor, reporter, logger)
			if err := runner.Run(cmd.Context(), pipeline.Options{
				Site:        site,
				ContentType: contentType,
				Publish:     doPublish,
			}); err != nil {
				return describeError(err, site)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&site, "site", "s", "", "site name on the remote service")
	cmd.Flags().StringVarP(&contentType, "contenttype", "c", "", "content type holding the page index items")
	cmd.Flags().BoolVarP(&doPublish, "publish", "p", false, "publish created and updated items to the site channel")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("contenttype")

	return cmd
}
