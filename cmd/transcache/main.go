// Command transcache translates text and HTML through a shared translation
// cache and manages the cache contents.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ZaguanLabs/transcache"
	"github.com/ZaguanLabs/transcache/cache"
	"github.com/ZaguanLabs/transcache/config"
	"github.com/ZaguanLabs/transcache/processor"
	"github.com/ZaguanLabs/transcache/provider"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = transcache.Version
	commit    = transcache.GitCommit
	buildDate = transcache.BuildDate
)

// newProvider builds the translation backend. Tests replace it.
var newProvider = openAIProvider

func openAIProvider(cfg config.OpenAIConfig) (transcache.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key required (openai.api_key, TRANSCACHE_OPENAI_API_KEY or OPENAI_API_KEY)")
	}
	return provider.NewOpenAIProvider(provider.OpenAIConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		BaseURL:     cfg.BaseURL,
	}), nil
}

const usage = `Usage: transcache [-config file] [-log-level level] <command> [flags] [args]

Commands:
  translate   Translate one text (args or stdin)
  batch       Translate stdin line by line
  detect      Detect the language of a text
  html        Translate an HTML file (or stdin)
  override    Manage manual overrides: override set|clear
  invalidate  Remove cached entries by resource, language or all
  stats       Show cache statistics
  export      Write the cache contents as JSON
  import      Load cache contents from a JSON export
  version     Show version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries what every command needs.
type cli struct {
	cfg    *config.Config
	logger zerolog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("transcache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	configPath := fs.String("config", "", "Path to a YAML config file")
	logLevel := fs.String("log-level", "", "Override log.level")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("command required")
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	if command == "version" {
		return runVersion(stdout)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}

	c := &cli{cfg: cfg, logger: logger, stdin: stdin, stdout: stdout, stderr: stderr}

	switch command {
	case "translate":
		return c.runTranslate(ctx, rest)
	case "batch":
		return c.runBatch(ctx, rest)
	case "detect":
		return c.runDetect(ctx, rest)
	case "html":
		return c.runHTML(ctx, rest)
	case "override":
		return c.runOverride(ctx, rest)
	case "invalidate":
		return c.runInvalidate(ctx, rest)
	case "stats":
		return c.runStats(ctx, rest)
	case "export":
		return c.runExport(ctx, rest)
	case "import":
		return c.runImport(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runVersion(stdout io.Writer) error {
	fmt.Fprintf(stdout, "%s %s\n", transcache.Name, version)
	if commit != "unknown" && commit != "" {
		fmt.Fprintf(stdout, "  commit:  %s\n", commit)
	}
	if buildDate != "unknown" && buildDate != "" {
		fmt.Fprintf(stdout, "  built:   %s\n", buildDate)
	}
	return nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays clean for command output.
func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", transcache.Name).Logger(), nil
}

// openStore connects the configured backend. The returned func releases it.
func (c *cli) openStore(ctx context.Context) (transcache.Store, func(), error) {
	sc := c.cfg.Store
	switch sc.Backend {
	case config.BackendRedis:
		s, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			URL:       sc.Redis.URL,
			TTL:       sc.Redis.TTL,
			KeyPrefix: sc.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis store: %w", err)
		}
		c.logger.Debug().Str("backend", sc.Backend).Msg("store ready")
		return s, func() { _ = s.Close() }, nil

	case config.BackendPostgres:
		pool, err := cache.ConnectPostgres(ctx, sc.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		s := cache.NewPostgresStore(pool, sc.Postgres.Table)
		if sc.Postgres.AutoMigrate {
			if err := s.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		c.logger.Debug().Str("backend", sc.Backend).Str("table", sc.Postgres.Table).Msg("store ready")
		return s, pool.Close, nil

	default:
		c.logger.Debug().Str("backend", config.BackendMemory).Msg("store ready")
		return cache.NewMemoryStore(sc.Memory.TTL), func() {}, nil
	}
}

// wrapProvider applies the configured rate limit and retry decorators.
// Each retry attempt takes its own rate limit token.
func wrapProvider(p transcache.Provider, cfg *config.Config) transcache.Provider {
	if cfg.RateLimit.Enabled {
		p = transcache.NewRateLimitedProvider(p, transcache.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.Burst,
		})
	}
	if cfg.Retry.Enabled && cfg.Retry.MaxRetries > 0 {
		p = transcache.NewRetryableProvider(p, transcache.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		})
	}
	return p
}

// newTranslator wires provider, store and logger into a Translator. The
// returned func drains detached writes and closes the store.
func (c *cli) newTranslator(ctx context.Context, withStore bool) (*transcache.Translator, func(), error) {
	p, err := newProvider(c.cfg.OpenAI)
	if err != nil {
		return nil, nil, err
	}

	opts := []transcache.TranslatorOption{
		transcache.WithLogger(c.logger),
		transcache.WithBatchConcurrency(c.cfg.Translator.BatchConcurrency),
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	}

	release := func() {}
	if withStore {
		store, closeStore, err := c.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, transcache.WithStore(store))
		release = closeStore
	}

	t := transcache.NewTranslator(wrapProvider(p, c.cfg), opts...)
	return t, func() {
		t.Wait()
		release()
	}, nil
}

// newCache opens the store behind the cache protocol for the management
// commands, which never call the provider.
func (c *cli) newCache(ctx context.Context) (*transcache.Cache, func(), error) {
	store, closeStore, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cc := transcache.NewCache(store, func(op string, err error) {
		c.logger.Warn().Err(err).Str("op", op).Msg("cache operation failed")
	})
	return cc, func() {
		cc.Wait()
		closeStore()
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
