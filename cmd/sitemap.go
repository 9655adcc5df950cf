package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/broker"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/clock/system"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/crawl"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/resolve"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/sitemap"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/storage/local"
)

// newSitemapCmd creates the command that generates a sitemap.xml for one site.
func newSitemapCmd() *cobra.Command {
	var (
		site       string
		siteURL    string
		changefreq string
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Generate a sitemap.xml for a site.",
		Long: `sitemap crawls the named site and writes a sitemap.xml covering every
page, with one entry per referenced content item on detail pages and
language alternates for multilingual sites.`,
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

			builder := sitemap.NewBuilder(crawler, resolver, system.New(), logger)
			doc, err := builder.Build(cmd.Context(), sitemap.Options{
				Site:       site,
				Prefix:     siteURL,
				ChangeFreq: changefreq,
			})
			if err != nil {
				return describeError(err, site)
			}

			dir := filepath.Dir(outFile)
			store, err := local.New(dir)
			if err != nil {
				return err
			}
			written, err := store.Write(filepath.Base(outFile), doc)
			if err != nil {
				return err
			}
			logger.Info("sitemap written",
				zap.String("site", site), zap.String("file", written))
			return nil
		},
	}

	cmd.Flags().StringVarP(&site, "site", "s", "", "site name on the remote service")
	cmd.Flags().StringVarP(&siteURL, "url", "u", "", "public URL prefix for page locations")
	cmd.Flags().StringVar(&changefreq, "changefreq", "monthly", "change frequency stamped on every entry")
	cmd.Flags().StringVarP(&outFile, "file", "f", "sitemap.xml", "output file path")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
