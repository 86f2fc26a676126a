package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/AlfredBerg/docs-table-scraper/internal/browser"
	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/AlfredBerg/docs-table-scraper/internal/crawl"
	"github.com/AlfredBerg/docs-table-scraper/internal/outputHandlers/sqlite"
	"github.com/AlfredBerg/docs-table-scraper/internal/sheet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.docs-table-scraper.yaml)")
	rootCmd.PersistentFlags().String("sections-file", "", "A YAML file with the sections to crawl. If empty the built-in table is used.")
	rootCmd.PersistentFlags().StringSlice("only", nil, "Only crawl these sections, e.g. 26-Time-and-Labor. This argument can be specified multiple times")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")

	rootCmd.Flags().StringP("output", "o", "", "The base directory for the workbooks. If empty you are asked for one.")
	rootCmd.Flags().IntP("concurrency", "c", 15, "The number of browsers to be used for crawling at the same time.")
	rootCmd.Flags().String("start-url", config.DefaultStartURL, "The page every browser session starts from.")
	rootCmd.Flags().String("ledger", "extraction.db", "The sqlite file, relative to the output directory, that records every page. Empty disables it.")
	rootCmd.Flags().Bool("recycle-session", false, "Start a new browser after a tables or views dropdown fails.")
	rootCmd.Flags().String("browser-bin", "", "The Chromium binary to use. If empty rod finds or downloads one.")
	rootCmd.Flags().Bool("trace", false, "Log every browser action.")

	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
	cobra.CheckErr(viper.BindPFlags(rootCmd.Flags()))

	rootCmd.AddCommand(sectionsCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".docs-table-scraper" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".docs-table-scraper")
	}

	viper.SetEnvPrefix("DTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

var rootCmd = &cobra.Command{
	Use:   "docs-table-scraper",
	Short: "Exports the tables and views reference of the Oracle HCM docs to xlsx workbooks",

	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		log, err := newLogger(settings.Verbose)
		if err != nil {
			return err
		}
		defer log.Sync()

		if settings.Output == "" {
			settings.Output = askOutput(os.Stdin, cmd.OutOrStdout())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, settings, log)
	},
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// askOutput prompts for the base directory. An empty answer picks the
// default.
func askOutput(in io.Reader, out io.Writer) string {
	def := config.DefaultOutput()
	fmt.Fprintf(out, "Output directory [%s]: ", def)
	sc := bufio.NewScanner(in)
	if sc.Scan() {
		if answer := strings.TrimSpace(sc.Text()); answer != "" {
			return answer
		}
	}
	return def
}

func run(ctx context.Context, settings config.Settings, log *zap.Logger) error {
	sections, err := config.LoadSections(settings.SectionsFile)
	if err != nil {
		return err
	}
	sections, err = config.Filter(sections, settings.Only)
	if err != nil {
		return err
	}

	base, err := filepath.Abs(settings.Output)
	if err != nil {
		return err
	}
	targets := crawl.Resolve(base, sections)
	if err := crawl.PrepareTree(targets); err != nil {
		return err
	}
	log.Info("starting crawl", zap.String("output", base), zap.Int("sections", len(targets)), zap.Int("concurrency", settings.Concurrency))

	job := crawl.Job{
		Launcher: &browser.RodLauncher{Options: browser.Options{
			StartURL:       settings.StartURL,
			Bin:            settings.BrowserBin,
			Headless:       settings.Headless,
			Width:          settings.Width,
			Height:         settings.Height,
			Zoom:           settings.Zoom,
			LoadTimeout:    settings.LoadTimeout,
			ConsentTimeout: settings.ConsentTimeout,
			InitialWait:    settings.InitialWait,
			ReloadWait:     settings.ReloadWait,
			Trace:          settings.Trace,
			Log:            log.Named("browser"),
		}},
		Retry:          settings.Retry,
		Writer:         &sheet.Writer{Log: log.Named("sheet")},
		RecycleSession: settings.RecycleSession,
	}

	var ledger *sqlite.SqliteOutput
	if settings.Ledger != "" {
		ledger = &sqlite.SqliteOutput{
			Database: filepath.Join(base, settings.Ledger),
			BasePath: base,
			Log:      log.Named("ledger"),
		}
		if err := ledger.Init(); err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		job.OutputHandler = ledger
	}

	b := &crawl.Batch{Workers: settings.Concurrency, Job: job, Log: log}
	reports := b.Run(ctx, targets)

	if ledger != nil {
		if err := ledger.Cleanup(); err != nil {
			log.Error("failed closing ledger", zap.Error(err))
		}
	}
	summarize(log, reports, ledger)

	if ctx.Err() != nil {
		log.Warn("crawl interrupted")
	}
	return nil
}

func summarize(log *zap.Logger, reports []crawl.Report, ledger *sqlite.SqliteOutput) {
	pages, failed := 0, 0
	for _, r := range reports {
		pages += r.Pages
		if r.OK() {
			continue
		}
		failed++
		if r.Err != nil {
			log.Error("section failed", zap.String("section", r.Section), zap.Error(r.Err))
		}
		for _, err := range r.Failures {
			log.Error("section incomplete", zap.String("section", r.Section), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int("sections", len(reports)),
		zap.Int("failed sections", failed),
		zap.Int("pages", pages),
	}
	if ledger != nil {
		counts, err := sqlite.Summary(ledger.Database, ledger.RunID)
		if err != nil {
			log.Warn("failed reading ledger summary", zap.Error(err))
		}
		for status, n := range counts {
			fields = append(fields, zap.Int(string(status), n))
		}
		fields = append(fields, zap.String("run", ledger.RunID))
	}
	log.Info("all crawling done", fields...)
}
