package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/multidispatch/internal/config"
	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/flags"
	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/presentation"
	"github.com/zjrosen/multidispatch/internal/table"
	"github.com/zjrosen/multidispatch/internal/tracing"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// defaultConfigPath is where a config is created when none is found.
const defaultConfigPath = ".multidispatch/config.yaml"

var (
	version = "dev"

	cfgFile    string
	tablePath  string
	jsonOutput bool
	debug      bool

	cfg         config.Config
	cfgUsed     string
	featureFlag *flags.Registry
	tracer      = tracing.Noop()
	closeLog    func()
)

var rootCmd = &cobra.Command{
	Use:   "multidispatch",
	Short: "Inspect and exercise multiple-dispatch tables",
	Long: `multidispatch loads a dispatch table (a type hierarchy plus the signatures
of each operation's variants) and answers which variant handles a call,
in which order signatures are tried, and which pairs are ambiguous.`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .multidispatch/config.yaml or ~/.config/multidispatch/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&tablePath, "table", "t", "",
		"dispatch table file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "write JSON instead of text")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs to log_path")
}

// loadConfig reads the config file into cfg. A missing config is created
// with defaults at .multidispatch/config.yaml.
func loadConfig() error {
	v := viper.New()
	defaults := config.Defaults()
	v.SetDefault("table", defaults.Table)
	v.SetDefault("log_path", defaults.LogPath)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("ambiguity", defaults.Ambiguity)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.expiration", defaults.Cache.Expiration)
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .multidispatch/config.yaml (current directory)
		// 2. ~/.config/multidispatch/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			v.SetConfigFile(defaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "multidispatch"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		if writeErr := config.WriteDefaultConfig(defaultConfigPath); writeErr == nil {
			v.SetConfigFile(defaultConfigPath)
			_ = v.ReadInConfig()
		}
	}

	cfg = config.Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	cfgUsed = v.ConfigFileUsed()
	if cfgUsed == "" {
		cfgUsed = defaultConfigPath
	}
	if tablePath != "" {
		cfg.Table = tablePath
	}
	if debug {
		cfg.Debug = true
	}
	return config.Validate(cfg)
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if cfg.Debug {
		cleanup, err := log.Init(cfg.LogPath)
		if err != nil {
			return err
		}
		log.SetMinLevel(log.ParseLevel(cfg.LogLevel))
		closeLog = cleanup
	}
	log.Debug(log.CatConfig, "Loaded config", "path", cfgUsed, "table", cfg.Table)

	featureFlag = flags.New(flags.WithDefaults(cfg.Flags))

	p, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	tracer = p
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	err := tracer.Shutdown(context.Background())
	tracer = tracing.Noop()
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
	return err
}

// registryOptions translates config into registry options.
func registryOptions(notifier dispatch.Notifier) []dispatch.Option {
	opts := []dispatch.Option{
		dispatch.WithNotifier(notifier),
		dispatch.WithTracer(tracer.Tracer()),
		dispatch.WithSuggestions(featureFlag.Enabled(flags.FlagSuggestSignatures)),
	}
	if !cfg.Cache.Enabled {
		opts = append(opts, dispatch.WithCacheDisabled())
	} else if cfg.Cache.Expiration > 0 {
		opts = append(opts, dispatch.WithCacheExpiration(cfg.Cache.Expiration))
	}
	return opts
}

// loaded is a dispatch table built into a namespace.
type loaded struct {
	file      *table.File
	hierarchy *typetag.Hierarchy
	ns        *dispatch.Namespace
}

// loadTable reads cfg.Table and registers it with stub variants. Ambiguity
// reports are not delivered; callers read them from the registries.
func loadTable() (*loaded, error) {
	f, err := table.Load(cfg.Table)
	if err != nil {
		return nil, err
	}
	h, ns, err := f.Build(nil, registryOptions(dispatch.LogNotifier{})...)
	if err != nil {
		return nil, err
	}
	return &loaded{file: f, hierarchy: h, ns: ns}, nil
}

// registry returns the named operation or an ErrUnknownOperation error.
func (l *loaded) registry(op string) (*dispatch.Registry, error) {
	r, ok := l.ns.Lookup(op)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dispatch.ErrUnknownOperation, op)
	}
	return r, nil
}

func formatter(w io.Writer) *presentation.Formatter {
	if jsonOutput {
		return presentation.NewJSONFormatter(w)
	}
	return presentation.NewFormatter(w)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
