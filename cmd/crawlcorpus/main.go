package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crawlcorpus/internal/config"
	"crawlcorpus/pkg/crawler"
	"crawlcorpus/pkg/sitemap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "crawlcorpus",
	Short: "Bounded, polite web crawler with content extraction",
	Long: `crawlcorpus crawls a set of seed pages up to a configured depth and
link budget, extracts readable content while preserving code blocks, and
writes a JSON report with a site map and a concatenated text corpus.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	RunE:          runCrawl,
}

func init() {
	flags := rootCmd.Flags()

	flags.StringSlice("urls", nil, "One or more URLs to crawl")
	flags.String("url-file", "", "Path to a file with seed URLs, one per line")
	flags.Int("depth", 3, "Maximum crawl depth")
	flags.Int("max-links", 100, "Maximum number of pages to crawl")
	flags.Duration("delay", 0, "Delay between requests (default 1s)")
	flags.Duration("timeout", 0, "Request timeout (default 30s)")
	flags.String("output", "", "Output file path (default output/crawl_result.json)")
	flags.String("user-agent", "", "User-agent string (default crawlcorpus/1.0)")
	flags.Bool("ignore-robots", false, "Ignore robots.txt restrictions")
	flags.Bool("same-path-only", false, "Crawl only URLs under the seed's path prefix")
	flags.Int("max-retries", 3, "Maximum retry attempts for failed requests")
	flags.Duration("retry-delay", 0, "Base delay for retry exponential backoff (default 1s)")
	flags.Int("circuit-breaker-threshold", 5, "Failures before a domain's circuit opens")
	flags.Duration("circuit-breaker-timeout", 0, "Time before an open circuit resets (default 5m)")
	flags.StringSlice("exclude-keywords", nil, "Keywords that exclude matching URL paths")
	flags.Int("requests-per-second", 0, "Per-domain request rate limit (0 disables)")
	flags.String("config", "", "Config file path")
	flags.Bool("debug", false, "Enable debug logging")

	rootCmd.MarkFlagsMutuallyExclusive("urls", "url-file")
	rootCmd.MarkFlagsOneRequired("urls", "url-file")

	bindings := map[string]string{
		"max_depth":                 "depth",
		"max_links":                 "max-links",
		"delay":                     "delay",
		"timeout":                   "timeout",
		"output_path":               "output",
		"user_agent":                "user-agent",
		"same_path_only":            "same-path-only",
		"max_retries":               "max-retries",
		"retry_delay":               "retry-delay",
		"circuit_breaker_threshold": "circuit-breaker-threshold",
		"circuit_breaker_timeout":   "circuit-breaker-timeout",
		"exclude_keywords":          "exclude-keywords",
		"requests_per_second":       "requests-per-second",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("ignore-robots") {
		ignore, _ := cmd.Flags().GetBool("ignore-robots")
		cfg.RespectRobotsTxt = !ignore
	}

	urls, _ := cmd.Flags().GetStringSlice("urls")
	if urlFile, _ := cmd.Flags().GetString("url-file"); urlFile != "" {
		fileURLs, fileKeywords, err := config.LoadSeedFile(urlFile)
		if err != nil {
			return err
		}
		urls = fileURLs
		cfg.ExcludeKeywords = append(cfg.ExcludeKeywords, fileKeywords...)
		logger.Info("loaded seed URLs", "count", len(urls), "file", urlFile)
	}
	if len(cfg.ExcludeKeywords) > 0 {
		logger.Info("using exclude keywords", "keywords", cfg.ExcludeKeywords)
	}

	c, err := crawler.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting crawl", "seeds", len(urls))
	report := c.Crawl(ctx, urls)

	if err := sitemap.Save(report, cfg.OutputPath); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	logger.Info("crawl completed", "pages", report.Metadata.TotalPages, "output", cfg.OutputPath)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
