package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/refstash/internal/batch"
	"github.com/mfenderov/refstash/internal/browser"
	"github.com/mfenderov/refstash/internal/config"
	"github.com/mfenderov/refstash/internal/extract"
	"github.com/mfenderov/refstash/internal/pipeline"
	"github.com/mfenderov/refstash/internal/store"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "refstash",
	Short: "refstash: quality-gated web page capture as markdown references",
	Long: `refstash fetches a URL, extracts its readable content as markdown, and
saves it as a reference file with structured metadata. Fetches that come back
low quality are retried with a headless browser render.

Commands:
  fetch    Fetch a URL and save it as a reference
  list     List saved references
  show     Print one reference
  promote  Move a reference into permanent storage
  delete   Delete a temporary reference
  links    Fetch every outbound link of a reference
  serve    Start the MCP server`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.refstash/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.refstash")
		}
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// REFSTASH_FETCH_MIN_SCORE -> fetch.min_score
	viper.SetEnvPrefix("REFSTASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("store.dir", "REFSTASH_STORE_DIR")
	viper.BindEnv("store.permanent_dir", "REFSTASH_STORE_PERMANENT_DIR")
	viper.BindEnv("fetch.user_agent", "REFSTASH_FETCH_USER_AGENT")
	viper.BindEnv("fetch.timeout", "REFSTASH_FETCH_TIMEOUT")
	viper.BindEnv("fetch.min_score", "REFSTASH_FETCH_MIN_SCORE")
	viper.BindEnv("fetch.fallback_threshold", "REFSTASH_FETCH_FALLBACK_THRESHOLD")
	viper.BindEnv("browser.headless", "REFSTASH_BROWSER_HEADLESS")
	viper.BindEnv("browser.bin", "REFSTASH_BROWSER_BIN")
	viper.BindEnv("browser.wait_strategy", "REFSTASH_BROWSER_WAIT_STRATEGY")
	viper.BindEnv("browser.navigation_timeout", "REFSTASH_BROWSER_NAVIGATION_TIMEOUT")
	viper.BindEnv("mcp.name", "REFSTASH_MCP_NAME")
	viper.BindEnv("mcp.version", "REFSTASH_MCP_VERSION")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}
}

// components bundles the wired application pieces the commands share.
type components struct {
	store   *store.Store
	browser *browser.Manager
	fetcher *pipeline.Fetcher
	links   *batch.Fetcher
}

func buildComponents(cfg config.Config) (*components, error) {
	st, err := store.New(store.Config{
		Dir:          cfg.Store.Dir,
		PermanentDir: cfg.Store.PermanentDir,
	})
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(browser.Config{
		Headless:          cfg.Browser.Headless,
		Bin:               cfg.Browser.Bin,
		WaitStrategy:      cfg.Browser.WaitStrategy,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
	})

	fetcher := pipeline.New(pipeline.Config{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           cfg.Fetch.Timeout,
		MinScore:          cfg.Fetch.MinScore,
		FallbackThreshold: cfg.Fetch.FallbackThreshold,
	}, extract.New(), pipeline.ManagerBrowser(mgr))

	return &components{
		store:   st,
		browser: mgr,
		fetcher: fetcher,
		links:   batch.New(fetcher, st, mgr),
	}, nil
}
