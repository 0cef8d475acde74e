package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/urlutil"
	"github.com/spf13/cobra"
)

// addDiscoveryFlags registers the crawl and selection flags shared by
// discover and scan.
func addDiscoveryFlags(cmd *cobra.Command) {
	// Crawl flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to discover")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the seed URL")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeoutPerPage,
		"Timeout for each page fetch")
	cmd.Flags().Int("parallelism", config.DefaultParallelism,
		"Number of concurrent page fetches")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Minimum interval between requests")
	cmd.Flags().Duration("budget", config.DefaultDiscoveryBudget,
		"Wall-clock limit of the discovery")
	cmd.Flags().Bool("ignore-robots", false,
		"Do not honor robots.txt")
	cmd.Flags().StringSlice("exclude", nil,
		"URL path globs never crawled (e.g., /logout*)")
	cmd.Flags().StringSlice("allow-domain", nil,
		"Extra domains the crawler may follow")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		"Extra request header as 'Name: value' (repeatable)")

	// Selection flags
	cmd.Flags().Float64("threshold", config.DefaultSimilarityThreshold,
		"Template similarity threshold in (0, 1]")
	cmd.Flags().Bool("recluster", false,
		"Rebuild template groups in a second pass after the crawl")
	cmd.Flags().StringP("strategy", "s", string(model.StrategyWCAGEM),
		"Page selection strategy (wcag_em, risk_based, coverage_optimal, user_journey, manual)")
	cmd.Flags().Int("select-max", config.DefaultSelectionMaxPages,
		"Maximum number of selected pages")
	cmd.Flags().Uint64("seed", config.DefaultSelectionSeed,
		"Seed for random choices of the selector")
}

// addScanFlags registers the scan and report flags.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("adapters", "a", nil,
		"Analyzers to run, in order (default: enabled adapters of the config file, else htmlcheck)")
	cmd.Flags().StringSlice("select", nil,
		"Scan exactly these discovered URLs (implies --strategy manual)")
	cmd.Flags().Int("parallel-pages", config.DefaultMaxParallelPages,
		"Number of pages scanned concurrently")
	cmd.Flags().Int("parallel-adapters", config.DefaultMaxConcurrentAdapters,
		"Number of analyzers run concurrently on one page")
	cmd.Flags().Int("retries", config.DefaultMaxRetries,
		"Retries after a failed analyzer attempt")
	cmd.Flags().Duration("adapter-timeout", config.DefaultAdapterTimeout,
		"Hard timeout of one analyzer attempt")
}

// addReportFlags registers the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildBaseConfig creates a Config from the global flags and the config file.
func buildBaseConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.NoDB, err = cmd.Flags().GetBool("no-db"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = cmd.Flags().GetString("redis-url"); err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, run without a file.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}
	return cfg, nil
}

// buildConfig creates the Config of a discover or scan run. args holds the
// seed URL.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildBaseConfig(cmd)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	if err := applyDiscoveryFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if cmd.Flags().Lookup("adapters") != nil {
		if err := applyScanFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Lookup("json") != nil {
		if err := applyReportFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplySite(urlutil.Host(cfg.SeedURL))
	if len(cfg.Adapters) == 0 {
		cfg.Adapters = append([]string(nil), config.DefaultAdapters...)
	}
	return cfg, nil
}

func applyDiscoveryFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return err
	}
	if cfg.TimeoutPerPage, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.Parallelism, err = flags.GetInt("parallelism"); err != nil {
		return err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("crawl-delay"); err != nil {
		return err
	}
	if cfg.DiscoveryBudget, err = flags.GetDuration("budget"); err != nil {
		return err
	}
	ignoreRobots, err := flags.GetBool("ignore-robots")
	if err != nil {
		return err
	}
	cfg.RespectRobots = !ignoreRobots
	if cfg.ExcludePatterns, err = flags.GetStringSlice("exclude"); err != nil {
		return err
	}
	if cfg.AllowedDomains, err = flags.GetStringSlice("allow-domain"); err != nil {
		return err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return err
	}
	headers, err := flags.GetStringArray("header")
	if err != nil {
		return err
	}
	if cfg.Headers, err = parseHeaders(headers); err != nil {
		return err
	}

	if cfg.SimilarityThreshold, err = flags.GetFloat64("threshold"); err != nil {
		return err
	}
	if cfg.Recluster, err = flags.GetBool("recluster"); err != nil {
		return err
	}
	strategy, err := flags.GetString("strategy")
	if err != nil {
		return err
	}
	cfg.Strategy = model.Strategy(strings.ToLower(strategy))
	if cfg.SelectionMaxPages, err = flags.GetInt("select-max"); err != nil {
		return err
	}
	if cfg.SelectionSeed, err = flags.GetUint64("seed"); err != nil {
		return err
	}
	return nil
}

func applyScanFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if cfg.Adapters, err = flags.GetStringSlice("adapters"); err != nil {
		return err
	}
	if cfg.ManualURLs, err = flags.GetStringSlice("select"); err != nil {
		return err
	}
	if len(cfg.ManualURLs) > 0 {
		cfg.Strategy = model.StrategyManual
	}
	if cfg.MaxParallelPages, err = flags.GetInt("parallel-pages"); err != nil {
		return err
	}
	if cfg.MaxConcurrentAdapters, err = flags.GetInt("parallel-adapters"); err != nil {
		return err
	}
	if cfg.MaxRetries, err = flags.GetInt("retries"); err != nil {
		return err
	}
	if cfg.AdapterTimeout, err = flags.GetDuration("adapter-timeout"); err != nil {
		return err
	}
	return nil
}

func applyReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}
	return nil
}

// errBadHeader is returned for a --header value without a colon.
var errBadHeader = errors.New("header must be given as 'Name: value'")

// parseHeaders converts "Name: value" pairs into a header map.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errBadHeader, p)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
